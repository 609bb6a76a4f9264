package sink

import (
	"sync"
	"time"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/metrics"
)

const defaultQueueFrames = 4

const frameDuration = audio.FrameDuration

// Clock is a headless device that drains its queue in real time, the way an
// I²S DMA ring does. A write blocks until the queue has room for it and fails
// with ErrTimeout when that wait would exceed the timeout.
type Clock struct {
	depth time.Duration // audio the queue may hold ahead of playback

	now   func() time.Time
	sleep func(time.Duration)

	mu      sync.Mutex
	drainAt time.Time // when everything queued so far will have played
	ready   bool
	closed  bool
}

// NewClock creates a clock device queueing up to frames engine frames.
func NewClock(frames int) *Clock {
	if frames <= 0 {
		frames = defaultQueueFrames
	}
	return &Clock{
		depth: time.Duration(frames) * frameDuration,
		now:   time.Now,
		sleep: time.Sleep,
	}
}

// Init implements Device.
func (c *Clock) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	c.closed = false
	c.drainAt = time.Time{}
	return nil
}

// Write implements Sink. The lock is not held while waiting, so Stall and
// Close are never delayed by a blocked write.
func (c *Clock) Write(p []byte, timeout time.Duration) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.ready {
		c.mu.Unlock()
		return ErrNotReady
	}

	now := c.now()
	if c.drainAt.Before(now) {
		c.drainAt = now
	}
	dur := durationOf(len(p))
	wait := c.drainAt.Add(dur).Sub(now) - c.depth
	c.mu.Unlock()

	if wait > timeout {
		c.sleep(timeout)
		return ErrTimeout
	}
	if wait > 0 {
		c.sleep(wait)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	now = c.now()
	if c.drainAt.Before(now) {
		c.drainAt = now
	}
	c.drainAt = c.drainAt.Add(dur)
	metrics.SinkQueueDepth.Set(float64(c.drainAt.Sub(now) / frameDuration))
	return nil
}

// Stall holds playback for d, as a peripheral that stops clocking out data
// would. Writes issued during the stall time out once the queue is full.
func (c *Clock) Stall(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now := c.now(); c.drainAt.Before(now) {
		c.drainAt = now
	}
	c.drainAt = c.drainAt.Add(d)
}

// Close implements Device.
func (c *Clock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
