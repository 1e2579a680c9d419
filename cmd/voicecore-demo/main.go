// voicecore-demo wires the voice pipeline to a real capture device (it exits
// if none can be opened), serves a dashboard over
// HTTP/WebSocket, and optionally exports Prometheus metrics and reaches a
// remote wake-word backend over gRPC.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wit-terminal/voicecore/internal/config"
	malgodriver "github.com/wit-terminal/voicecore/internal/driver/malgo"
	"github.com/wit-terminal/voicecore/internal/metrics"
	"github.com/wit-terminal/voicecore/internal/server"
	"github.com/wit-terminal/voicecore/internal/voice"
	"github.com/wit-terminal/voicecore/internal/wakeword/remote"
)

func main() {
	tuiMode := flag.Bool("tui", false, "run the terminal dashboard instead of waiting on a signal")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := config.Load()

	wakeWords := make([]voice.WakeWordModel, len(cfg.WakeWordNames))
	for i, name := range cfg.WakeWordNames {
		wakeWords[i] = voice.WakeWordModel{Name: name, Threshold: 0.5, Format: voice.FormatONNX}
	}

	pipelineCfg := voice.DefaultConfig(cfg.Channels, cfg.MicPositions())
	pipelineCfg.SampleRate = cfg.SampleRate
	pipelineCfg.FrameLen = cfg.FrameLen
	pipelineCfg.Sensitivity = cfg.Sensitivity
	pipelineCfg.NoiseSuppression = cfg.NoiseSuppression
	pipelineCfg.WakeWords = wakeWords

	opts := []voice.Option{voice.WithLogger(logger)}

	var wakeClient *remote.Client
	if cfg.WakeWordAddr != "" {
		c, err := remote.New(cfg.WakeWordAddr, remote.DefaultConfig())
		if err != nil {
			slog.Error("failed to connect to wake-word backend", "addr", cfg.WakeWordAddr, "error", err)
			os.Exit(1)
		}
		wakeClient = c
		opts = append(opts, voice.WithScorer(remote.NewScorer(c)))
	}

	ctx, err := voice.NewContext(pipelineCfg, opts...)
	if err != nil {
		slog.Error("failed to construct voice pipeline", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := ctx.Deinit(); err != nil {
			slog.Error("pipeline deinit error", "error", err)
		}
	}()

	capturer, err := malgodriver.New(malgodriver.Config{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		FrameLen:   cfg.FrameLen,
		DeviceID:   cfg.DeviceID,
	}, newPipelineSink(ctx, cfg.Channels, cfg.FrameLen))
	if err != nil {
		slog.Error("failed to open capture device", "error", err)
		os.Exit(1)
	}
	if err := capturer.Start(); err != nil {
		slog.Error("failed to start capture", "error", err)
		os.Exit(1)
	}
	defer capturer.Stop()

	mux := http.NewServeMux()

	if cfg.Metrics {
		exp, err := metrics.NewExporter()
		if err != nil {
			slog.Error("failed to start metrics exporter", "error", err)
			os.Exit(1)
		}
		if err := exp.RegisterSource(ctx); err != nil {
			slog.Error("failed to register metrics source", "error", err)
			os.Exit(1)
		}
		defer func() { _ = exp.Shutdown(context.Background()) }()
		mux.Handle("/metrics", promhttp.Handler())
	}

	dashboard := server.New(ctx, cfg.WakeWordNames)
	mux.Handle("/", dashboard.Handler())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("voicecore-demo starting", "http", cfg.HTTPAddr, "channels", cfg.Channels, "sample_rate", cfg.SampleRate)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	if *tuiMode {
		if err := runTUI(ctx, cfg.WakeWordNames); err != nil {
			slog.Error("tui error", "error", err)
		}
	} else {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
	}

	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if wakeClient != nil {
		_ = wakeClient.Close()
	}
	slog.Info("shutdown complete")
}
