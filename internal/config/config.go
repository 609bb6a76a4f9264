package config

import (
	"os"
	"strconv"
	"time"
)

// Parameter source modes.
const (
	ModeSweep  = "sweep"
	ModeManual = "manual"
)

type Config struct {
	ListenAddr string

	Sink        string
	WAVPath     string
	EmitTimeout time.Duration
	QueueFrames int
	CaptureSec  int

	Mode             string
	InitialFrequency float64
	InitialAmplitude float64
	ApplyAmplitude   bool
	Precision        string

	LogDevelopment bool
}

func Load() *Config {
	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":9090"),
		Sink:             getEnv("SINK", "clock"),
		WAVPath:          getEnv("WAV_PATH", "serieli.wav"),
		EmitTimeout:      time.Duration(getEnvInt("EMIT_TIMEOUT_MS", 100)) * time.Millisecond,
		QueueFrames:      getEnvInt("SINK_QUEUE_FRAMES", 4),
		CaptureSec:       getEnvInt("CAPTURE_SEC", 5),
		Mode:             getEnv("MODE", ModeSweep),
		InitialFrequency: getEnvFloat("INITIAL_FREQUENCY", 441),
		InitialAmplitude: getEnvFloat("INITIAL_AMPLITUDE", 0.1),
		ApplyAmplitude:   getEnvBool("SYNTH_APPLY_AMPLITUDE", true),
		Precision:        getEnv("SYNTH_PRECISION", "coarse"),
		LogDevelopment:   getEnvBool("LOG_DEVELOPMENT", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
