package engine

import (
	"math"
	"sync"
)

// Params is one oscillator setting.
type Params struct {
	Frequency float64 `json:"frequency"`
	Amplitude float64 `json:"amplitude"`
}

// ParamSource supplies parameter updates to the run loop, which polls it once
// before every frame.
type ParamSource interface {
	// Next returns the parameters to apply before the next frame, or false
	// to leave the oscillator as it is.
	Next() (Params, bool)
	// Name labels updates from this source in logs and metrics.
	Name() string
}

// SweepSteps is the number of frames in one sweep cycle.
const SweepSteps = 314

// Sweep is the demonstration driver: frequency and amplitude follow slow
// sinusoids, one step per frame, repeating every SweepSteps frames.
type Sweep struct {
	i int
}

// NewSweep returns a sweep positioned at step zero.
func NewSweep() *Sweep { return &Sweep{} }

// Next implements ParamSource. It always reports an update.
func (s *Sweep) Next() (Params, bool) {
	x := float64(s.i)
	s.i = (s.i + 1) % SweepSteps
	return Params{
		Frequency: 500 + 100*math.Sin(0.02*x),
		Amplitude: 0.5 * 0.2 * math.Cos(0.007*x),
	}, true
}

// Name implements ParamSource.
func (s *Sweep) Name() string { return "sweep" }

// Manual holds a setting chosen from outside the run loop, e.g. by the
// control API. It is safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	p       Params
	pending bool
}

// NewManual returns a source that applies p on the first poll.
func NewManual(p Params) *Manual {
	return &Manual{p: p, pending: true}
}

// Set replaces the setting; the run loop applies it before the next frame.
func (m *Manual) Set(p Params) {
	m.mu.Lock()
	m.p = p
	m.pending = true
	m.mu.Unlock()
}

// Current returns the latest setting, applied or not.
func (m *Manual) Current() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p
}

// Next implements ParamSource. Each Set is reported once.
func (m *Manual) Next() (Params, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return m.p, false
	}
	m.pending = false
	return m.p, true
}

// Name implements ParamSource.
func (m *Manual) Name() string { return "manual" }
