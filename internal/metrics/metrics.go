// Package metrics exports the voice pipeline's stats through OpenTelemetry,
// bridged to Prometheus's pull model. Grounded on the observability provider
// pattern used elsewhere in the example corpus (Prometheus exporter feeding
// an sdkmetric.MeterProvider registered as the global OTel provider).
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/wit-terminal/voicecore/internal/voice"
)

// StatsSource is the minimal surface metrics needs from a voice.Context;
// defined as an interface so tests can supply a fake without constructing
// a real pipeline.
type StatsSource interface {
	GetStats() voice.Stats
	GetState() voice.State
}

// Exporter bridges a voice pipeline's stats to a Prometheus-scrapable OTel
// meter provider.
type Exporter struct {
	mp *sdkmetric.MeterProvider
}

// NewExporter builds the meter provider with a Prometheus reader and
// registers it as the global OTel meter provider.
func NewExporter() (*Exporter, error) {
	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExp))
	otel.SetMeterProvider(mp)
	return &Exporter{mp: mp}, nil
}

// RegisterSource wires observable instruments that sample src.GetStats() on
// every Prometheus scrape — no polling goroutine needed, since OTel's
// observable callbacks run lazily at collection time.
func (e *Exporter) RegisterSource(src StatsSource) error {
	meter := otel.Meter("voicecore")

	framesProcessed, err := meter.Int64ObservableCounter("voicecore_frames_processed_total")
	if err != nil {
		return err
	}
	bufferOverruns, err := meter.Int64ObservableCounter("voicecore_buffer_overruns_total")
	if err != nil {
		return err
	}
	vadActivations, err := meter.Int64ObservableCounter("voicecore_vad_activations_total")
	if err != nil {
		return err
	}
	wakeDetections, err := meter.Int64ObservableCounter("voicecore_wake_detections_total")
	if err != nil {
		return err
	}
	backendFailures, err := meter.Int64ObservableCounter("voicecore_backend_failures_total")
	if err != nil {
		return err
	}
	clippingCount, err := meter.Int64ObservableCounter("voicecore_clipping_samples_total")
	if err != nil {
		return err
	}
	avgEnergy, err := meter.Float64ObservableGauge("voicecore_avg_energy_db")
	if err != nil {
		return err
	}
	noiseFloor, err := meter.Float64ObservableGauge("voicecore_noise_floor_db")
	if err != nil {
		return err
	}
	cpuUsage, err := meter.Float64ObservableGauge("voicecore_cpu_usage_percent")
	if err != nil {
		return err
	}
	sessionState, err := meter.Int64ObservableGauge("voicecore_session_state")
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		stats := src.GetStats()
		o.ObserveInt64(framesProcessed, int64(stats.FramesProcessed))
		o.ObserveInt64(bufferOverruns, int64(stats.BufferOverruns))
		o.ObserveInt64(vadActivations, int64(stats.VADActivations))
		o.ObserveInt64(wakeDetections, int64(stats.WakeDetections))
		o.ObserveInt64(backendFailures, int64(stats.BackendFailures))
		for ch, count := range stats.ClippingCount {
			o.ObserveInt64(clippingCount, int64(count), metric.WithAttributes(attribute.Int("channel", ch)))
		}
		o.ObserveFloat64(avgEnergy, stats.AvgEnergyDB)
		o.ObserveFloat64(noiseFloor, stats.NoiseFloorDB)
		o.ObserveFloat64(cpuUsage, stats.CPUUsagePercent)
		o.ObserveInt64(sessionState, int64(src.GetState()))
		return nil
	},
		framesProcessed, bufferOverruns, vadActivations, wakeDetections,
		backendFailures, clippingCount, avgEnergy, noiseFloor, cpuUsage, sessionState,
	)
	return err
}

// Shutdown flushes and closes the meter provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	return e.mp.Shutdown(ctx)
}
