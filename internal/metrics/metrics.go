package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	EngineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "serieli_engine_state",
		Help: "1 for the engine's current lifecycle state, 0 otherwise",
	}, []string{"state"})
	OscillatorFrequency = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "serieli_oscillator_frequency_hz",
		Help: "Frequency applied by the most recent parameter update",
	})
	OscillatorAmplitude = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "serieli_oscillator_amplitude",
		Help: "Amplitude applied by the most recent parameter update",
	})
	SinkQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "serieli_sink_queue_frames",
		Help: "Frames queued in the output device awaiting playback",
	})
)

// Counters
var (
	FramesEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serieli_frames_emitted_total",
		Help: "Frames accepted by the output sink",
	})
	FramesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serieli_frames_dropped_total",
		Help: "Frames discarded because the sink write failed, by reason",
	}, []string{"reason"})
	DeadlineOverrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serieli_deadline_overruns_total",
		Help: "Frames whose synthesis and emit took longer than the soft deadline",
	})
	ParameterUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "serieli_parameter_updates_total",
		Help: "Parameter updates applied to the oscillator by source",
	}, []string{"source"})
	SinkUnderrunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serieli_sink_underruns_total",
		Help: "Device reads that found no queued frame and played silence",
	})
)

// Histograms
var (
	FrameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "serieli_frame_duration_ms",
		Help:    "Time to synthesize and emit one frame in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})
)
