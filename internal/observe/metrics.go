// Package observe provides OpenTelemetry metrics for the speech controller.
//
// Instruments are recorded through the OpenTelemetry Metrics API. A
// Prometheus exporter bridge is installed by [InitProvider] so the serve
// command can expose them on /metrics. Tests should use [NewMetrics] with a
// manual reader to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/dgnsrekt/mouthpiece"

// Boundary outcomes.
const (
	BoundaryAccepted  = "accepted"
	BoundaryCoalesced = "coalesced"
	BoundaryIgnored   = "ignored"
	BoundaryStale     = "stale"
)

// Metrics holds the metric instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Utterances counts started utterances by engine.
	Utterances metric.Int64Counter

	// Boundaries counts boundary events by outcome.
	Boundaries metric.Int64Counter

	// Fallbacks counts utterances that switched to simulated mode.
	Fallbacks metric.Int64Counter

	// SpeakErrors counts rejected speak calls by kind.
	SpeakErrors metric.Int64Counter

	// UtteranceDuration tracks how long utterances lasted, by end reason.
	UtteranceDuration metric.Float64Histogram

	// ActiveClients tracks connected frame stream clients.
	ActiveClients metric.Int64UpDownCounter
}

// durationBuckets are histogram boundaries in seconds for spoken replies.
var durationBuckets = []float64{
	0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates the instruments using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Utterances, err = m.Int64Counter("mouthpiece.utterances",
		metric.WithDescription("Total utterances started by engine."),
	); err != nil {
		return nil, err
	}
	if met.Boundaries, err = m.Int64Counter("mouthpiece.boundaries",
		metric.WithDescription("Boundary events by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("mouthpiece.fallbacks",
		metric.WithDescription("Utterances animated in simulated mode."),
	); err != nil {
		return nil, err
	}
	if met.SpeakErrors, err = m.Int64Counter("mouthpiece.speak.errors",
		metric.WithDescription("Rejected speak requests by kind."),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("mouthpiece.utterance.duration",
		metric.WithDescription("Utterance duration by end reason."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveClients, err = m.Int64UpDownCounter("mouthpiece.stream.clients",
		metric.WithDescription("Connected frame stream clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance backed by the global
// meter provider.
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

// RecordUtterance counts a started utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordBoundary counts a boundary event with the given outcome.
func (m *Metrics) RecordBoundary(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.Boundaries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordFallback counts a switch to simulated mode.
func (m *Metrics) RecordFallback(ctx context.Context, engine string) {
	if m == nil {
		return
	}
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordSpeakError counts a rejected speak call.
func (m *Metrics) RecordSpeakError(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SpeakErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordUtteranceEnd records how long an utterance lasted and why it ended.
func (m *Metrics) RecordUtteranceEnd(ctx context.Context, reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.UtteranceDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("reason", reason)))
}

// ClientConnected adjusts the stream client gauge by delta.
func (m *Metrics) ClientConnected(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveClients.Add(ctx, delta)
}
