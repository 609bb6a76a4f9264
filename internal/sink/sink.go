// Package sink defines the blocking output seam between the synthesis engine
// and an audio peripheral, along with the devices that satisfy it.
//
// Every device accepts little-endian interleaved stereo unsigned 16-bit words
// at 44100 Hz, one engine frame per Write.
package sink

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrTimeout is returned when a write could not complete within its timeout.
	ErrTimeout = errors.New("sink: write timed out")
	// ErrClosed is returned by writes after Close.
	ErrClosed = errors.New("sink: closed")
	// ErrNotReady is returned by writes before a successful Init.
	ErrNotReady = errors.New("sink: device not initialized")
	// ErrUnavailable is returned by Init when the device is not compiled in.
	ErrUnavailable = errors.New("sink: device unavailable in this build")
)

// Sink transfers one frame payload to the output, blocking for at most timeout.
type Sink interface {
	Write(p []byte, timeout time.Duration) error
}

// Device is a Sink that needs bring-up before the first write.
type Device interface {
	Sink
	// Init prepares the device. Writes must not be issued until it succeeds.
	Init() error
	// Close releases the device. Idempotent.
	Close() error
}

// Device names accepted by Open.
const (
	NameClock  = "clock"
	NameOto    = "oto"
	NameWAV    = "wav"
	NameMemory = "memory"
)

// Options selects and configures a device for Open.
type Options struct {
	Name        string
	WAVPath     string
	QueueFrames int
	MemorySec   int
	Logger      *zap.Logger
}

// Open constructs the named device. The device is not initialized.
func Open(opts Options) (Device, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("sink", opts.Name))

	switch opts.Name {
	case NameClock:
		return NewClock(opts.QueueFrames), nil
	case NameOto:
		return NewOto(opts.QueueFrames, logger), nil
	case NameWAV:
		if opts.WAVPath == "" {
			return nil, fmt.Errorf("wav sink: path required")
		}
		return NewWAV(opts.WAVPath, logger), nil
	case NameMemory:
		sec := opts.MemorySec
		if sec <= 0 {
			sec = 1
		}
		return NewMemory(sec), nil
	}
	return nil, fmt.Errorf("unknown sink %q", opts.Name)
}

// durationOf returns the playback time of a stereo 16-bit payload.
func durationOf(n int) time.Duration {
	return time.Duration(n/4) * time.Second / 44100
}
