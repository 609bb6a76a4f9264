package sink

import (
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
)

// WAV records frames to a 16-bit stereo PCM wave file. Writes go straight to
// disk, so the timeout is not applied. Close must be called to finalize the
// file header.
type WAV struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	f      *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
	closed bool
}

// NewWAV creates a WAV recorder writing to path.
func NewWAV(path string, logger *zap.Logger) *WAV {
	return &WAV{
		path:   path,
		logger: logger,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: audio.Channels,
				SampleRate:  audio.SampleRate,
			},
			Data:           make([]int, 0, audio.FrameLength*audio.Channels),
			SourceBitDepth: 16,
		},
	}
}

// Init implements Device. It creates (or truncates) the output file.
func (w *WAV) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc != nil {
		return nil
	}
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	w.f = f
	w.enc = wav.NewEncoder(f, audio.SampleRate, 16, audio.Channels, 1)
	w.closed = false
	w.logger.Info("recording to wav", zap.String("path", w.path))
	return nil
}

// Write implements Sink.
func (w *WAV) Write(p []byte, _ time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if w.enc == nil {
		return ErrNotReady
	}

	w.buf.Data = w.buf.Data[:0]
	for _, word := range audio.BytesToWords(p) {
		w.buf.Data = append(w.buf.Data, int(audio.Signed(word)))
	}
	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("encode wav frame: %w", err)
	}
	w.frames++
	return nil
}

// Close implements Device.
func (w *WAV) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.enc == nil {
		w.closed = true
		return nil
	}
	w.closed = true

	encErr := w.enc.Close()
	fileErr := w.f.Close()
	w.logger.Info("wav recording finalized",
		zap.String("path", w.path),
		zap.Int("frames", w.frames),
	)
	if encErr != nil {
		return fmt.Errorf("finalize wav: %w", encErr)
	}
	return fileErr
}
