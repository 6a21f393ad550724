// Package observe provides the OpenTelemetry metrics recorded by koe.
//
// Instruments are created through the OpenTelemetry Metrics API. A
// Prometheus exporter bridge is installed by [InitProvider] so the CLI can
// serve a /metrics endpoint. Tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid sharing state with other tests.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all koe metrics.
const meterName = "github.com/yomu-app/koe"

// Outcome values recorded with the "outcome" attribute.
const (
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeError     = "error"
	OutcomeStarted   = "started"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeStored    = "stored"
	OutcomeCached    = "cached"
	OutcomeSkipped   = "skipped"
)

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// CacheLookups counts store lookups by outcome (hit, miss, error).
	CacheLookups metric.Int64Counter

	// StageOutcomes counts chain stage results. Attributes: stage, outcome.
	StageOutcomes metric.Int64Counter

	// PlaybackSessions counts sessions by outcome.
	PlaybackSessions metric.Int64Counter

	// ActivePlayback is 1 while a session is live.
	ActivePlayback metric.Int64UpDownCounter

	// SynthesisDuration tracks live utterance length by engine.
	SynthesisDuration metric.Float64Histogram

	// PreloadItems counts preloaded texts by outcome.
	PreloadItems metric.Int64Counter
}

// utteranceBuckets are bucket boundaries in seconds. Learner utterances are
// a single kana up to a short sentence.
var utteranceBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 16,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CacheLookups, err = m.Int64Counter("koe.cache.lookups",
		metric.WithDescription("Audio store lookups by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageOutcomes, err = m.Int64Counter("koe.stage.outcomes",
		metric.WithDescription("Fallback chain stage results by stage and outcome."),
	); err != nil {
		return nil, err
	}
	if met.PlaybackSessions, err = m.Int64Counter("koe.playback.sessions",
		metric.WithDescription("Playback sessions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActivePlayback, err = m.Int64UpDownCounter("koe.playback.active",
		metric.WithDescription("Number of live playback sessions."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("koe.synthesis.duration",
		metric.WithDescription("Duration of live speech utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(utteranceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PreloadItems, err = m.Int64Counter("koe.preload.items",
		metric.WithDescription("Preloaded texts by outcome."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance, created on first call
// from [otel.GetMeterProvider]. Call [InitProvider] first if the instruments
// should be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordLookup records one store lookup.
func (m *Metrics) RecordLookup(ctx context.Context, outcome string) {
	m.CacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records the result of one chain stage.
func (m *Metrics) RecordStage(ctx context.Context, stage, outcome string) {
	m.StageOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordSession records a session state change.
func (m *Metrics) RecordSession(ctx context.Context, outcome string) {
	m.PlaybackSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSynthesis records how long a live utterance took.
func (m *Metrics) RecordSynthesis(ctx context.Context, engine string, d time.Duration) {
	m.SynthesisDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordPreload records the outcome of preloading one text.
func (m *Metrics) RecordPreload(ctx context.Context, outcome string) {
	m.PreloadItems.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
