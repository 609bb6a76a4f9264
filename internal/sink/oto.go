//go:build !headless

package sink

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/metrics"
)

// otoReadyTimeout bounds how long Init waits for the driver to come up.
const otoReadyTimeout = 5 * time.Second

// Oto plays frames on the host's default audio output. Frames are converted to
// signed PCM and queued; the oto player pulls from the queue on its own
// goroutine, so a full queue is what makes Write block.
type Oto struct {
	logger *zap.Logger

	queue  chan []byte
	free   chan []byte
	closed chan struct{}

	mu        sync.Mutex
	ctx       *oto.Context
	player    *oto.Player
	closeOnce sync.Once

	cur     []byte // only touched by the player goroutine
	curBuf  []byte
	ready   atomic.Bool
	started atomic.Bool
}

// NewOto creates an oto device queueing up to frames engine frames.
func NewOto(frames int, logger *zap.Logger) *Oto {
	if frames <= 0 {
		frames = defaultQueueFrames
	}
	o := &Oto{
		logger: logger,
		queue:  make(chan []byte, frames),
		free:   make(chan []byte, frames+2),
		closed: make(chan struct{}),
	}
	for i := 0; i < frames+2; i++ {
		o.free <- make([]byte, audio.FrameBytes)
	}
	return o
}

// Init implements Device. It opens the audio context and starts playback of
// the (initially silent) queue.
func (o *Oto) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   2 * frameDuration,
	})
	if err != nil {
		return fmt.Errorf("open audio context: %w", err)
	}
	if err := waitReady(ready, otoReadyTimeout); err != nil {
		return err
	}

	o.ctx = ctx
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	o.ready.Store(true)
	o.logger.Info("oto device ready", zap.Int("queueFrames", cap(o.queue)))
	return nil
}

func waitReady(ready <-chan struct{}, timeout time.Duration) error {
	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audio context not ready after %s: %w", timeout, ErrUnavailable)
	}
}

// Write implements Sink.
func (o *Oto) Write(p []byte, timeout time.Duration) error {
	if !o.ready.Load() {
		return ErrNotReady
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var buf []byte
	select {
	case buf = <-o.free:
	case <-o.closed:
		return ErrClosed
	case <-timer.C:
		return ErrTimeout
	}
	if cap(buf) < len(p) {
		buf = make([]byte, len(p))
	}
	buf = audio.SignedBytesInto(p, buf[:cap(buf)])

	select {
	case o.queue <- buf:
		o.started.Store(true)
		metrics.SinkQueueDepth.Set(float64(len(o.queue)))
		return nil
	case <-o.closed:
		return ErrClosed
	case <-timer.C:
		o.recycle(buf)
		return ErrTimeout
	}
}

func (o *Oto) recycle(buf []byte) {
	select {
	case o.free <- buf:
	default:
	}
}

// Read feeds the oto player. It never blocks: when the queue is empty it
// plays silence and counts an underrun.
func (o *Oto) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(o.cur) == 0 {
			if o.curBuf != nil {
				o.recycle(o.curBuf)
				o.curBuf = nil
			}
			select {
			case buf := <-o.queue:
				o.curBuf = buf
				o.cur = buf
			default:
				if o.started.Load() {
					metrics.SinkUnderrunsTotal.Inc()
				}
				clear(p[n:])
				return len(p), nil
			}
		}
		c := copy(p[n:], o.cur)
		o.cur = o.cur[c:]
		n += c
	}
	return n, nil
}

// Close implements Device.
func (o *Oto) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.closed)
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.player != nil {
			err = o.player.Close()
		}
	})
	return err
}
