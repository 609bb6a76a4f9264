package ringbuffer

import "sync"

// BytesPerSecond is the number of bytes per second of 44.1kHz stereo 16-bit PCM.
// 44100 samples/sec * 2 channels * 2 bytes/sample = 176400 bytes/sec.
const BytesPerSecond = 44100 * 2 * 2

// blockAlign is the size of one interleaved stereo sample.
const blockAlign = 4

// RingBuffer holds a fixed-duration circular buffer of 44.1kHz stereo 16-bit PCM.
// It is safe for concurrent use from a single writer and any number of readers.
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	writePos int
	capacity int
	written  int64 // total bytes ever written
}

// New creates a ring buffer that holds the specified number of seconds of audio.
func New(seconds int) *RingBuffer {
	return NewBytes(seconds * BytesPerSecond)
}

// NewBytes creates a ring buffer holding n bytes, rounded down to whole
// stereo samples. n must be at least one stereo sample.
func NewBytes(n int) *RingBuffer {
	n -= n % blockAlign
	if n < blockAlign {
		n = blockAlign
	}
	return &RingBuffer{
		buf:      make([]byte, n),
		capacity: n,
	}
}

// Write appends PCM data to the buffer, overwriting the oldest data when full.
func (rb *RingBuffer) Write(data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.written += int64(len(data))
	if len(data) > rb.capacity {
		data = data[len(data)-rb.capacity:]
	}
	for len(data) > 0 {
		n := copy(rb.buf[rb.writePos:], data)
		data = data[n:]
		rb.writePos = (rb.writePos + n) % rb.capacity
	}
}

// Snapshot returns a copy of the last N seconds of audio.
// If less data has been written than requested, only the available data is returned.
func (rb *RingBuffer) Snapshot(seconds int) []byte {
	return rb.SnapshotBytes(seconds * BytesPerSecond)
}

// SnapshotBytes returns a copy of the most recent n bytes, rounded down to
// whole stereo samples and capped at what is stored.
func (rb *RingBuffer) SnapshotBytes(n int) []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	requested := n - n%blockAlign
	if stored := rb.stored(); requested > stored {
		requested = stored
	}
	if requested <= 0 {
		return nil
	}

	out := make([]byte, requested)
	start := (rb.writePos - requested + rb.capacity) % rb.capacity

	if start+requested <= rb.capacity {
		copy(out, rb.buf[start:start+requested])
	} else {
		first := rb.capacity - start
		copy(out[:first], rb.buf[start:])
		copy(out[first:], rb.buf[:requested-first])
	}

	return out
}

// Available returns the number of seconds of audio currently stored.
func (rb *RingBuffer) Available() float64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return float64(rb.stored()) / float64(BytesPerSecond)
}

// Written returns the total number of bytes ever written.
func (rb *RingBuffer) Written() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.written
}

// Reset discards all stored audio.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.writePos = 0
	rb.written = 0
}

func (rb *RingBuffer) stored() int {
	if rb.written > int64(rb.capacity) {
		return rb.capacity
	}
	return int(rb.written)
}
