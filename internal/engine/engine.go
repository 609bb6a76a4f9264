package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/metrics"
	"github.com/RenatoCabral2022/serieli/internal/sink"
)

// State constants for the engine lifecycle.
const (
	StateStopped  = "stopped"
	StateStarting = "starting"
	StateRunning  = "running"
	StateHalted   = "halted"
)

var states = []string{StateStopped, StateStarting, StateRunning, StateHalted}

var (
	// ErrHalted is returned once device bring-up has failed. It is terminal.
	ErrHalted = errors.New("engine halted: audio device bring-up failed")
	// ErrNotStarted is returned when synthesis is requested before Start.
	ErrNotStarted = errors.New("engine not started")
	// ErrFrameDropped wraps a sink failure that cost one frame.
	ErrFrameDropped = errors.New("frame dropped")
)

const (
	DefaultEmitTimeout = 100 * time.Millisecond
	DefaultDeadline    = 2 * audio.FrameDuration
)

// Options tunes an Engine. Zero values select the defaults.
type Options struct {
	// EmitTimeout bounds each blocking sink write.
	EmitTimeout time.Duration
	// Deadline is the soft budget for synthesizing and emitting one frame.
	// With a pacing device up to one frame of it is spent waiting for room.
	Deadline time.Duration
	// Producer controls sample packing.
	Producer audio.Producer
	// Precision selects the sine approximation.
	Precision audio.Precision
}

// Status is a snapshot of the engine, safe to read from any goroutine.
type Status struct {
	ID               string  `json:"id"`
	State            string  `json:"state"`
	Frequency        float64 `json:"frequency"`
	Amplitude        float64 `json:"amplitude"`
	Phase            float64 `json:"phase"`
	Precision        string  `json:"precision"`
	AmplitudeApplied bool    `json:"amplitudeApplied"`
	FramesEmitted    int64   `json:"framesEmitted"`
	FramesDropped    int64   `json:"framesDropped"`
	DeadlineOverruns int64   `json:"deadlineOverruns"`
	LastError        string  `json:"lastError,omitempty"`
}

// Engine owns the oscillator and the output device and runs the
// synthesize-then-emit duty cycle. Synthesis methods (SetParameters, Step,
// Emit, Run) must all be called from one goroutine; Status may be called
// from anywhere.
type Engine struct {
	id     string
	dev    sink.Device
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	osc     *audio.Oscillator
	frame   audio.Frame
	payload []byte

	mu        sync.Mutex
	state     string
	lastError string
	snapshot  Params
	phase     float64

	framesEmitted atomic.Int64
	framesDropped atomic.Int64
	overruns      atomic.Int64
}

// New creates an engine writing to dev. The device is not touched until Start.
func New(dev sink.Device, opts Options, logger *zap.Logger) *Engine {
	if opts.EmitTimeout <= 0 {
		opts.EmitTimeout = DefaultEmitTimeout
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}

	osc := audio.NewOscillator()
	osc.SetPrecision(opts.Precision)

	id := uuid.New().String()
	e := &Engine{
		id:      id,
		dev:     dev,
		opts:    opts,
		logger:  logger.With(zap.String("engine", id)),
		now:     time.Now,
		osc:     osc,
		payload: make([]byte, 0, audio.FrameBytes),
		state:   StateStopped,
		snapshot: Params{
			Frequency: osc.Frequency(),
			Amplitude: osc.Amplitude(),
		},
	}
	e.publishState(StateStopped)
	return e
}

// Start brings up the output device. If bring-up fails the engine halts for
// good: it reports StateHalted and never synthesizes.
func (e *Engine) Start() error {
	e.mu.Lock()
	switch e.state {
	case StateHalted:
		e.mu.Unlock()
		return ErrHalted
	case StateRunning:
		e.mu.Unlock()
		return nil
	}
	e.state = StateStarting
	e.mu.Unlock()
	e.publishState(StateStarting)

	if err := e.dev.Init(); err != nil {
		e.mu.Lock()
		e.state = StateHalted
		e.lastError = err.Error()
		e.mu.Unlock()
		e.publishState(StateHalted)
		e.logger.Error("could not start audio, halting", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrHalted, err)
	}

	e.mu.Lock()
	e.state = StateRunning
	e.mu.Unlock()
	e.publishState(StateRunning)
	e.logger.Info("audio device ready",
		zap.Duration("emitTimeout", e.opts.EmitTimeout),
		zap.String("precision", e.osc.Precision().String()),
		zap.Bool("amplitudeApplied", !e.opts.Producer.IgnoreAmplitude),
	)
	return nil
}

// Close releases the device and returns the engine to StateStopped, unless
// it has halted.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.state != StateHalted {
		e.state = StateStopped
	}
	st := e.state
	e.mu.Unlock()
	e.publishState(st)
	return e.dev.Close()
}

// SetParameters retunes the oscillator without resetting its phase.
func (e *Engine) SetParameters(p Params) {
	e.osc.SetParameters(p.Frequency, p.Amplitude)
	metrics.OscillatorFrequency.Set(e.osc.Frequency())
	metrics.OscillatorAmplitude.Set(e.osc.Amplitude())
	e.publishOscillator()
}

// Emit writes one frame to the device, waiting at most the emit timeout.
// A failed write drops the frame and is reported as ErrFrameDropped; the
// oscillator is unaffected and the next frame can be emitted normally.
func (e *Engine) Emit(f *audio.Frame) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.payload = f.AppendBytes(e.payload[:0])
	if err := e.dev.Write(e.payload, e.opts.EmitTimeout); err != nil {
		reason := "error"
		if errors.Is(err, sink.ErrTimeout) {
			reason = "timeout"
		}
		metrics.FramesDroppedTotal.WithLabelValues(reason).Inc()
		dropped := e.framesDropped.Add(1)

		e.mu.Lock()
		e.lastError = err.Error()
		e.mu.Unlock()

		e.logger.Warn("frame dropped",
			zap.Error(err),
			zap.String("reason", reason),
			zap.Int64("dropped", dropped),
		)
		return fmt.Errorf("%w: %w", ErrFrameDropped, err)
	}

	metrics.FramesEmittedTotal.Inc()
	e.framesEmitted.Add(1)
	return nil
}

// Step runs one duty cycle: poll src (if any) for new parameters, synthesize
// a frame and emit it. The returned error is either a lifecycle error or a
// dropped frame; both leave the oscillator consistent.
func (e *Engine) Step(src ParamSource) error {
	if err := e.ready(); err != nil {
		return err
	}
	if src != nil {
		if p, ok := src.Next(); ok {
			e.SetParameters(p)
			metrics.ParameterUpdatesTotal.WithLabelValues(src.Name()).Inc()
		}
	}

	start := e.now()
	e.opts.Producer.Fill(&e.frame, e.osc)
	e.publishOscillator()
	err := e.Emit(&e.frame)

	elapsed := e.now().Sub(start)
	metrics.FrameDuration.Observe(float64(elapsed) / float64(time.Millisecond))
	if elapsed > e.opts.Deadline {
		metrics.DeadlineOverrunsTotal.Inc()
		e.overruns.Add(1)
		e.logger.Debug("frame deadline overrun",
			zap.Duration("elapsed", elapsed),
			zap.Duration("deadline", e.opts.Deadline),
		)
	}
	return err
}

// Run repeats Step until ctx is done. The context is checked between frames
// only, so a frame in progress always completes. Dropped frames do not stop
// the loop. Run returns ErrHalted immediately on a halted engine.
func (e *Engine) Run(ctx context.Context, src ParamSource) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.logger.Info("synthesis loop started", zap.String("source", sourceName(src)))

	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info("synthesis loop stopped",
				zap.Int64("framesEmitted", e.framesEmitted.Load()),
				zap.Int64("framesDropped", e.framesDropped.Load()),
			)
			return nil
		}
		if err := e.Step(src); err != nil && !errors.Is(err, ErrFrameDropped) {
			return err
		}
	}
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		ID:               e.id,
		State:            e.state,
		Frequency:        e.snapshot.Frequency,
		Amplitude:        e.snapshot.Amplitude,
		Phase:            e.phase,
		Precision:        e.opts.Precision.String(),
		AmplitudeApplied: !e.opts.Producer.IgnoreAmplitude,
		FramesEmitted:    e.framesEmitted.Load(),
		FramesDropped:    e.framesDropped.Load(),
		DeadlineOverruns: e.overruns.Load(),
		LastError:        e.lastError,
	}
}

// ID returns the engine instance id.
func (e *Engine) ID() string { return e.id }

func (e *Engine) ready() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateRunning:
		return nil
	case StateHalted:
		return ErrHalted
	}
	return ErrNotStarted
}

func (e *Engine) publishOscillator() {
	e.mu.Lock()
	e.snapshot = Params{Frequency: e.osc.Frequency(), Amplitude: e.osc.Amplitude()}
	e.phase = e.osc.Phase()
	e.mu.Unlock()
}

func (e *Engine) publishState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		metrics.EngineState.WithLabelValues(s).Set(v)
	}
}

func sourceName(src ParamSource) string {
	if src == nil {
		return "none"
	}
	return src.Name()
}
