// Package observe provides application-wide observability primitives for
// Speakmate: OpenTelemetry metrics, tracing, and HTTP middleware that ties
// them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Speakmate metrics.
const meterName = "github.com/speakmate/speakmate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TurnDuration tracks end-to-end turn latency, from input to the
	// complete event.
	TurnDuration metric.Float64Histogram

	// NodeDuration tracks per-node execution latency. Use with attributes:
	//   attribute.String("node", ...), attribute.String("status", ...)
	NodeDuration metric.Float64Histogram

	// SuggestionDuration tracks full suggestion-pipeline latency.
	SuggestionDuration metric.Float64Histogram

	// --- Counters ---

	// Turns counts executed turns. Use with attribute:
	//   attribute.String("input", "text"|"audio")
	Turns metric.Int64Counter

	// NodeErrors counts node failures by node name.
	NodeErrors metric.Int64Counter

	// Suggestions counts vocabulary suggestions produced per summary request.
	Suggestions metric.Int64Counter

	// --- Gauges ---

	// ActiveTurns tracks the number of turns currently executing.
	ActiveTurns metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// LLM-bound turn latencies.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TurnDuration, err = m.Float64Histogram("speakmate.turn.duration",
		metric.WithDescription("End-to-end latency of one conversation turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NodeDuration, err = m.Float64Histogram("speakmate.node.duration",
		metric.WithDescription("Per-node execution latency by node and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SuggestionDuration, err = m.Float64Histogram("speakmate.suggestion.duration",
		metric.WithDescription("Latency of the vocabulary suggestion pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Turns, err = m.Int64Counter("speakmate.turns",
		metric.WithDescription("Total executed turns by input kind."),
	); err != nil {
		return nil, err
	}
	if met.NodeErrors, err = m.Int64Counter("speakmate.node.errors",
		metric.WithDescription("Total node failures by node name."),
	); err != nil {
		return nil, err
	}
	if met.Suggestions, err = m.Int64Counter("speakmate.suggestions",
		metric.WithDescription("Total vocabulary suggestions produced."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveTurns, err = m.Int64UpDownCounter("speakmate.active_turns",
		metric.WithDescription("Number of turns currently executing."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speakmate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one end-to-end turn duration in seconds.
func (m *Metrics) RecordTurn(ctx context.Context, seconds float64) {
	m.TurnDuration.Record(ctx, seconds)
}

// TurnStarted counts a turn by input kind ("text" or "audio") and marks it
// active until [Metrics.TurnEnded].
func (m *Metrics) TurnStarted(ctx context.Context, input string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(attribute.String("input", input)))
	m.ActiveTurns.Add(ctx, 1)
}

// TurnEnded marks a turn as no longer active.
func (m *Metrics) TurnEnded(ctx context.Context) {
	m.ActiveTurns.Add(ctx, -1)
}

// RecordNode records one node execution with the standard attribute set and
// increments the error counter when status is not "ok".
func (m *Metrics) RecordNode(ctx context.Context, node, status string, seconds float64) {
	m.NodeDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("node", node),
			attribute.String("status", status),
		),
	)
	if status != "ok" {
		m.NodeErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("node", node)),
		)
	}
}

// RecordSuggestions records one suggestion-pipeline run: its duration and
// the number of suggestions produced.
func (m *Metrics) RecordSuggestions(ctx context.Context, count int, seconds float64) {
	m.SuggestionDuration.Record(ctx, seconds)
	m.Suggestions.Add(ctx, int64(count))
}
