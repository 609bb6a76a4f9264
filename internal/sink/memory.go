package sink

import (
	"sync"
	"time"

	"github.com/RenatoCabral2022/serieli/internal/ringbuffer"
)

// Memory keeps the most recent audio written to it in a ring buffer.
// It never blocks and never times out.
type Memory struct {
	rb *ringbuffer.RingBuffer

	mu     sync.Mutex
	writes int
	closed bool
}

// NewMemory creates a memory sink retaining the given number of seconds.
func NewMemory(seconds int) *Memory {
	return &Memory{rb: ringbuffer.New(seconds)}
}

// Init implements Device. It discards anything captured before.
func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rb.Reset()
	m.writes = 0
	m.closed = false
	return nil
}

// Write implements Sink.
func (m *Memory) Write(p []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.rb.Write(p)
	m.writes++
	return nil
}

// Close implements Device.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Snapshot returns up to the last n bytes written.
func (m *Memory) Snapshot(n int) []byte {
	return m.rb.SnapshotBytes(n)
}

// SnapshotSeconds returns up to the last seconds of audio written.
func (m *Memory) SnapshotSeconds(seconds int) []byte {
	return m.rb.Snapshot(seconds)
}

// Written returns the total bytes ever captured, including overwritten ones.
func (m *Memory) Written() int64 {
	return m.rb.Written()
}

// Available returns the seconds of audio currently retained.
func (m *Memory) Available() float64 {
	return m.rb.Available()
}

// Tee writes to a primary device and mirrors every accepted frame into a
// Memory capture.
type Tee struct {
	Device
	Capture *Memory
}

// NewTee wraps primary with a capture of the given length.
func NewTee(primary Device, seconds int) *Tee {
	return &Tee{Device: primary, Capture: NewMemory(seconds)}
}

// Write implements Sink. Frames the primary rejects are not captured.
func (t *Tee) Write(p []byte, timeout time.Duration) error {
	if err := t.Device.Write(p, timeout); err != nil {
		return err
	}
	return t.Capture.Write(p, timeout)
}
