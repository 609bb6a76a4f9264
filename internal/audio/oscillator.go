package audio

import (
	"math"
	"time"
)

const (
	// SampleRate is the fixed output rate of the I²S bus.
	SampleRate = 44100
	// FrameLength is the number of samples per channel in one frame (10ms).
	FrameLength = 441
	// Channels is the number of interleaved output channels.
	Channels = 2
	// BytesPerSample is the width of one output word.
	BytesPerSample = 2
	// FrameBytes is the size of one packed frame payload.
	// 441 samples * 2 channels * 2 bytes = 1764 bytes.
	FrameBytes = FrameLength * Channels * BytesPerSample
	// FrameDuration is the playback time of one frame.
	FrameDuration = FrameLength * time.Second / SampleRate
)

const twoPi = 2 * math.Pi

// Precision selects the sine polynomial used by an Oscillator.
type Precision int

const (
	// PrecisionCoarse uses the degree-7 polynomial (max error 1.57e-4).
	PrecisionCoarse Precision = iota
	// PrecisionFine uses the degree-9 polynomial (max error 4e-6).
	PrecisionFine
)

// ParsePrecision maps "coarse" and "fine" to a Precision.
func ParsePrecision(s string) (Precision, bool) {
	switch s {
	case "coarse", "":
		return PrecisionCoarse, true
	case "fine":
		return PrecisionFine, true
	}
	return PrecisionCoarse, false
}

func (p Precision) String() string {
	if p == PrecisionFine {
		return "fine"
	}
	return "coarse"
}

// Oscillator is a phase accumulator producing an approximate sine wave.
// It is not safe for concurrent use: a single goroutine must own it.
type Oscillator struct {
	amplitude float64
	frequency float64
	phase     float64 // always in [0, 2π)
	step      float64 // radians per sample

	precision Precision
	sine      func(float64) float64
}

// NewOscillator returns an oscillator at phase zero, unit amplitude, stepping
// one full cycle per frame.
func NewOscillator() *Oscillator {
	return &Oscillator{
		amplitude: 1,
		frequency: float64(SampleRate) / FrameLength,
		step:      twoPi / FrameLength,
		sine:      ApproxSin,
	}
}

// SetParameters retunes the oscillator. The phase is left untouched so the
// waveform stays continuous across the change. Frequencies are not clamped;
// negative or very large values simply produce a negative or aliased step.
// Non-finite values are ignored and the previous setting is kept.
func (o *Oscillator) SetParameters(frequency, amplitude float64) {
	if isFinite(frequency) {
		o.frequency = frequency
		o.step = twoPi / SampleRate * frequency
	}
	if isFinite(amplitude) {
		o.amplitude = amplitude
	}
}

// SetPrecision selects the sine approximation used by Next.
func (o *Oscillator) SetPrecision(p Precision) {
	o.precision = p
	if p == PrecisionFine {
		o.sine = ApproxSinFine
		return
	}
	o.sine = ApproxSin
}

// Next returns the approximate sine of the current phase, then advances the
// phase by one step and wraps it back into [0, 2π).
func (o *Oscillator) Next() float64 {
	v := o.sine(o.phase)
	o.phase = wrapPhase(o.phase + o.step)
	return v
}

// Phase returns the current phase in radians.
func (o *Oscillator) Phase() float64 { return o.phase }

// Step returns the phase increment per sample in radians.
func (o *Oscillator) Step() float64 { return o.step }

// Frequency returns the last frequency set, in Hz.
func (o *Oscillator) Frequency() float64 { return o.frequency }

// Amplitude returns the stored amplitude.
func (o *Oscillator) Amplitude() float64 { return o.amplitude }

// Precision returns the selected sine approximation.
func (o *Oscillator) Precision() Precision { return o.precision }

func wrapPhase(p float64) float64 {
	if p >= 0 && p < twoPi {
		return p
	}
	p = math.Mod(p, twoPi)
	if p < 0 {
		p += twoPi
	}
	// -tiny + 2π can round up to exactly 2π
	if p >= twoPi {
		p = 0
	}
	return p
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
