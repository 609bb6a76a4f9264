package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/sink"
	"github.com/RenatoCabral2022/serieli/internal/testutil"
)

// faultyDevice wraps a memory sink and fails selected writes.
type faultyDevice struct {
	*sink.Memory
	initErr error
	failOn  map[int]error
	calls   int
}

func (d *faultyDevice) Init() error { return d.initErr }

func (d *faultyDevice) Write(p []byte, timeout time.Duration) error {
	d.calls++
	if err, ok := d.failOn[d.calls]; ok {
		return err
	}
	return d.Memory.Write(p, timeout)
}

func newFaulty(failOn map[int]error) *faultyDevice {
	return &faultyDevice{Memory: sink.NewMemory(1), failOn: failOn}
}

func newStarted(t *testing.T, dev sink.Device, opts Options) *Engine {
	t.Helper()
	e := New(dev, opts, zap.NewNop())
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return e
}

// cancelAfter is a parameter source that cancels the run after n polls.
type cancelAfter struct {
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Next() (Params, bool) {
	c.n--
	if c.n == 0 {
		c.cancel()
	}
	return Params{}, false
}

func (c *cancelAfter) Name() string { return "test" }

func TestStartFailureHalts(t *testing.T) {
	dev := newFaulty(nil)
	dev.initErr = errors.New("i2s channel unavailable")
	e := New(dev, Options{}, zap.NewNop())

	err := e.Start()
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("expected ErrHalted, got %v", err)
	}

	st := e.Status()
	if st.State != StateHalted {
		t.Errorf("expected state %q, got %q", StateHalted, st.State)
	}
	if st.LastError != "i2s channel unavailable" {
		t.Errorf("expected bring-up error recorded, got %q", st.LastError)
	}

	var f audio.Frame
	if err := e.Emit(&f); !errors.Is(err, ErrHalted) {
		t.Errorf("Emit on halted engine: expected ErrHalted, got %v", err)
	}
	if err := e.Step(NewSweep()); !errors.Is(err, ErrHalted) {
		t.Errorf("Step on halted engine: expected ErrHalted, got %v", err)
	}
	if err := e.Run(context.Background(), nil); !errors.Is(err, ErrHalted) {
		t.Errorf("Run on halted engine: expected ErrHalted, got %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrHalted) {
		t.Errorf("restart of halted engine: expected ErrHalted, got %v", err)
	}
	if dev.calls != 0 {
		t.Errorf("halted engine wrote %d frames to the device", dev.calls)
	}
	if e.osc.Phase() != 0 {
		t.Errorf("halted engine advanced the oscillator")
	}
}

func TestEmitBeforeStart(t *testing.T) {
	e := New(newFaulty(nil), Options{}, zap.NewNop())
	var f audio.Frame
	if err := e.Emit(&f); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got %v", err)
	}
	if e.Status().State != StateStopped {
		t.Errorf("expected state %q, got %q", StateStopped, e.Status().State)
	}
}

func TestEmitWritesOneFramePayload(t *testing.T) {
	dev := newFaulty(nil)
	e := newStarted(t, dev, Options{})

	if err := e.Step(nil); err != nil {
		t.Fatal(err)
	}
	if dev.calls != 1 {
		t.Fatalf("expected exactly one write per step, got %d", dev.calls)
	}
	got := dev.Snapshot(audio.FrameBytes * 2)
	if len(got) != audio.FrameBytes {
		t.Fatalf("expected %d byte payload, got %d", audio.FrameBytes, len(got))
	}

	ref := audio.NewOscillator()
	want := audio.ProduceFrame(ref)
	if diff := cmp.Diff(want.Bytes(), got); diff != "" {
		t.Errorf("payload differs from directly produced frame (-want +got):\n%s", diff)
	}
}

func TestTransientFailureIsolation(t *testing.T) {
	failing := newFaulty(map[int]error{3: sink.ErrTimeout, 5: errors.New("dma error")})
	clean := newFaulty(nil)

	a := newStarted(t, failing, Options{})
	b := newStarted(t, clean, Options{})

	for i := 0; i < 8; i++ {
		a.SetParameters(Params{Frequency: 300 + 50*float64(i), Amplitude: 0.5})
		b.SetParameters(Params{Frequency: 300 + 50*float64(i), Amplitude: 0.5})

		errA := a.Step(nil)
		errB := b.Step(nil)
		if errB != nil {
			t.Fatalf("clean step %d: %v", i, errB)
		}

		frame := i + 1
		if frame == 3 || frame == 5 {
			if !errors.Is(errA, ErrFrameDropped) {
				t.Fatalf("frame %d: expected ErrFrameDropped, got %v", frame, errA)
			}
			continue
		}
		if errA != nil {
			t.Fatalf("frame %d: unexpected error %v", frame, errA)
		}
		if diff := cmp.Diff(b.frame, a.frame); diff != "" {
			t.Fatalf("frame %d after a dropped frame differs (-want +got):\n%s", frame, diff)
		}
	}

	st := a.Status()
	if st.FramesDropped != 2 || st.FramesEmitted != 6 {
		t.Errorf("expected 6 emitted / 2 dropped, got %d / %d", st.FramesEmitted, st.FramesDropped)
	}
	if st.State != StateRunning {
		t.Errorf("dropped frames must not change state, got %q", st.State)
	}
	if st.LastError != "dma error" {
		t.Errorf("expected last error recorded, got %q", st.LastError)
	}
	if a.osc.Phase() != b.osc.Phase() {
		t.Errorf("oscillator phase diverged: %f vs %f", a.osc.Phase(), b.osc.Phase())
	}
}

func TestEmitTimeoutAgainstStalledClock(t *testing.T) {
	clk := sink.NewClock(1)
	e := newStarted(t, clk, Options{EmitTimeout: 5 * time.Millisecond})

	clk.Stall(time.Second)
	start := time.Now()
	err := e.Step(nil)
	if !errors.Is(err, ErrFrameDropped) || !errors.Is(err, sink.ErrTimeout) {
		t.Fatalf("expected dropped frame wrapping ErrTimeout, got %v", err)
	}
	if waited := time.Since(start); waited > time.Second/2 {
		t.Errorf("emit blocked for %v, expected it bounded by the timeout", waited)
	}
}

func TestStepAppliesSource(t *testing.T) {
	e := newStarted(t, newFaulty(nil), Options{})

	if err := e.Step(NewSweep()); err != nil {
		t.Fatal(err)
	}
	if e.osc.Frequency() != 500 || e.osc.Amplitude() != 0.1 {
		t.Errorf("expected first sweep step (500 Hz, 0.1), got (%f, %f)", e.osc.Frequency(), e.osc.Amplitude())
	}
	wantStep := 2 * math.Pi * 500 / audio.SampleRate
	if math.Abs(e.osc.Step()-wantStep) > 1e-12 {
		t.Errorf("expected step %g, got %g", wantStep, e.osc.Step())
	}

	st := e.Status()
	if st.Frequency != 500 || st.Amplitude != 0.1 {
		t.Errorf("status not updated: %+v", st)
	}
	if st.Phase != e.osc.Phase() {
		t.Errorf("status phase %f, oscillator phase %f", st.Phase, e.osc.Phase())
	}
}

func TestManualSourceAppliedOnce(t *testing.T) {
	e := newStarted(t, newFaulty(nil), Options{})
	m := NewManual(Params{Frequency: 441, Amplitude: 1})

	e.Step(m)
	if e.osc.Frequency() != 441 {
		t.Fatalf("expected initial manual setting applied, got %f", e.osc.Frequency())
	}

	// Mutating the oscillator directly must survive a poll with nothing pending.
	e.SetParameters(Params{Frequency: 880, Amplitude: 1})
	e.Step(m)
	if e.osc.Frequency() != 880 {
		t.Errorf("manual source re-applied a stale setting")
	}

	m.Set(Params{Frequency: 220, Amplitude: 0.5})
	e.Step(m)
	if e.osc.Frequency() != 220 || e.osc.Amplitude() != 0.5 {
		t.Errorf("expected (220, 0.5), got (%f, %f)", e.osc.Frequency(), e.osc.Amplitude())
	}
}

func TestDeadlineOverrun(t *testing.T) {
	e := newStarted(t, newFaulty(nil), Options{Deadline: 10 * time.Millisecond})
	clock := time.Unix(0, 0)
	e.now = func() time.Time {
		clock = clock.Add(15 * time.Millisecond)
		return clock
	}

	for i := 0; i < 3; i++ {
		e.Step(nil)
	}
	if got := e.Status().DeadlineOverruns; got != 3 {
		t.Errorf("expected 3 overruns, got %d", got)
	}
}

func TestRunStopsBetweenFrames(t *testing.T) {
	baseline := testutil.GoroutineBaseline()

	dev := newFaulty(map[int]error{2: sink.ErrTimeout})
	e := newStarted(t, dev, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &cancelAfter{n: 5, cancel: cancel}

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, src) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	// The frame whose poll cancelled the context still completes.
	if dev.calls != 5 {
		t.Errorf("expected 5 frames attempted, got %d", dev.calls)
	}
	st := e.Status()
	if st.FramesEmitted != 4 || st.FramesDropped != 1 {
		t.Errorf("expected 4 emitted / 1 dropped, got %d / %d", st.FramesEmitted, st.FramesDropped)
	}

	testutil.AssertNoGoroutineLeaks(t, baseline, 1)
}

func TestCloseReturnsToStopped(t *testing.T) {
	dev := newFaulty(nil)
	e := newStarted(t, dev, Options{})
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if e.Status().State != StateStopped {
		t.Errorf("expected %q after Close, got %q", StateStopped, e.Status().State)
	}
	if err := e.Step(nil); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted after Close, got %v", err)
	}
}

func TestStatusReportsOptions(t *testing.T) {
	e := New(newFaulty(nil), Options{
		Producer:  audio.Producer{IgnoreAmplitude: true},
		Precision: audio.PrecisionFine,
	}, zap.NewNop())

	st := e.Status()
	if st.AmplitudeApplied || st.Precision != "fine" {
		t.Errorf("unexpected options in status: %+v", st)
	}
	if st.ID == "" || st.ID != e.ID() {
		t.Errorf("expected instance id in status, got %q", st.ID)
	}
}
