package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/serieli/internal/audio"
	"github.com/RenatoCabral2022/serieli/internal/config"
	"github.com/RenatoCabral2022/serieli/internal/control"
	"github.com/RenatoCabral2022/serieli/internal/engine"
	"github.com/RenatoCabral2022/serieli/internal/sink"
)

func main() {
	cfg := config.Load()

	var logger *zap.Logger
	if cfg.LogDevelopment {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("serieli starting",
		zap.String("sink", cfg.Sink),
		zap.String("mode", cfg.Mode),
		zap.String("listen", cfg.ListenAddr),
		zap.Duration("emitTimeout", cfg.EmitTimeout),
	)

	dev, err := sink.Open(sink.Options{
		Name:        cfg.Sink,
		WAVPath:     cfg.WAVPath,
		QueueFrames: cfg.QueueFrames,
		MemorySec:   cfg.CaptureSec,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("failed to open sink", zap.Error(err))
	}

	var capture *sink.Memory
	if cfg.CaptureSec > 0 {
		tee := sink.NewTee(dev, cfg.CaptureSec)
		capture = tee.Capture
		dev = tee
	}

	precision, ok := audio.ParsePrecision(cfg.Precision)
	if !ok {
		logger.Fatal("unknown precision", zap.String("precision", cfg.Precision))
	}

	eng := engine.New(dev, engine.Options{
		EmitTimeout: cfg.EmitTimeout,
		Producer:    audio.Producer{IgnoreAmplitude: !cfg.ApplyAmplitude},
		Precision:   precision,
	}, logger)

	var (
		src    engine.ParamSource
		manual *engine.Manual
	)
	switch cfg.Mode {
	case config.ModeSweep:
		src = engine.NewSweep()
	case config.ModeManual:
		manual = engine.NewManual(engine.Params{
			Frequency: cfg.InitialFrequency,
			Amplitude: cfg.InitialAmplitude,
		})
		src = manual
	default:
		logger.Fatal("unknown mode", zap.String("mode", cfg.Mode))
	}

	var srv *http.Server
	if cfg.ListenAddr != "" {
		h := control.NewHandlers(eng, manual, capture, logger)
		srv = &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      h.Router(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		}
		go func() {
			logger.Info("control API listening", zap.String("addr", cfg.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("control API failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// A failed bring-up leaves the engine halted; the process stays up so the
	// halted state can be observed through /healthz and /v1/status.
	if err := eng.Start(); err != nil {
		logger.Error("audio unavailable, synthesis disabled", zap.Error(err))
		close(done)
	} else {
		logger.Info("all systems OK")
		go func() {
			defer close(done)
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if err := eng.Run(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("synthesis loop exited", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	<-done
	if err := eng.Close(); err != nil {
		logger.Warn("close sink", zap.Error(err))
	}

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}
}
