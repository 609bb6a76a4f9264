package audio

const (
	// SampleScale is the peak signed value of a full-scale sample.
	SampleScale = 0x3FFF
	// SampleBias shifts signed samples to unsigned words centred on the midpoint.
	SampleBias = 0x8000
)

// Frame is one 10ms block of interleaved stereo unsigned 16-bit words.
// Even indexes are the left channel, odd indexes the right.
type Frame [FrameLength * Channels]uint16

// Producer packs oscillator output into frames.
type Producer struct {
	// IgnoreAmplitude packs every sample at full scale regardless of the
	// oscillator's amplitude, which is how the original firmware behaved.
	IgnoreAmplitude bool
}

// ProduceFrame synthesizes one frame with the oscillator's amplitude applied.
func ProduceFrame(osc *Oscillator) Frame {
	return Producer{}.Produce(osc)
}

// Produce advances osc by FrameLength samples and returns them packed as a
// mono signal duplicated on both channels.
func (p Producer) Produce(osc *Oscillator) Frame {
	var f Frame
	p.Fill(&f, osc)
	return f
}

// Fill overwrites every word of f with fresh samples from osc.
func (p Producer) Fill(f *Frame, osc *Oscillator) {
	gain := p.gain(osc)
	for i := 0; i < FrameLength; i++ {
		w := PackSample(osc.Next(), gain)
		f[i<<1] = w
		f[i<<1|1] = w
	}
}

func (p Producer) gain(osc *Oscillator) float64 {
	if p.IgnoreAmplitude {
		return 1
	}
	g := osc.Amplitude()
	if g > 1 {
		return 1
	}
	if g < -1 {
		return -1
	}
	return g
}

// PackSample converts a value in [-1, 1] to a biased unsigned word. The
// scaled value is truncated toward zero to a signed 16-bit integer first.
// gain must lie in [-1, 1].
func PackSample(v, gain float64) uint16 {
	s := int16(SampleScale * gain * v)
	return uint16(SampleBias + int32(s))
}

// Left returns the left-channel word of sample k.
func (f *Frame) Left(k int) uint16 { return f[k<<1] }

// Right returns the right-channel word of sample k.
func (f *Frame) Right(k int) uint16 { return f[k<<1|1] }
