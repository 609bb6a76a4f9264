//go:build headless

package sink

import (
	"time"

	"go.uber.org/zap"
)

// Oto is a stub in headless builds; Init always fails with ErrUnavailable.
type Oto struct{}

// NewOto returns the stub device.
func NewOto(frames int, logger *zap.Logger) *Oto {
	return &Oto{}
}

// Init implements Device. Audio output is not compiled in.
func (o *Oto) Init() error { return ErrUnavailable }

// Write implements Sink.
func (o *Oto) Write(p []byte, timeout time.Duration) error { return ErrNotReady }

// Close implements Device.
func (o *Oto) Close() error { return nil }
