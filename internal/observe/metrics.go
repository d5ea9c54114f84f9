// Package observe provides application-wide observability primitives for
// Pitch Live: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all Pitch Live metrics.
const meterName = "github.com/famousai/pitchlive"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ReplyDuration tracks end-to-end reply pipeline latency.
	ReplyDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// --- Counters ---

	// Replies counts produced replies. Use with attributes:
	//   attribute.String("outcome", ...), attribute.String("model", ...)
	Replies metric.Int64Counter

	// Refusals counts guarded-off messages. Use with attribute:
	//   attribute.String("reason", ...)
	Refusals metric.Int64Counter

	// Escalations counts tickets opened for human review.
	Escalations metric.Int64Counter

	// RateLimited counts messages rejected by the rate limiter.
	RateLimited metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts LLM provider failures. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// --- Spend ---

	// BudgetSpend accumulates estimated LLM spend in USD.
	BudgetSpend metric.Float64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// chat-reply latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ReplyDuration, err = m.Float64Histogram("pitchlive.reply.duration",
		metric.WithDescription("End-to-end latency of the live AI reply pipeline."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("pitchlive.llm.duration",
		metric.WithDescription("Latency of LLM inference."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Replies, err = m.Int64Counter("pitchlive.replies",
		metric.WithDescription("Total replies by outcome and model."),
	); err != nil {
		return nil, err
	}
	if met.Refusals, err = m.Int64Counter("pitchlive.refusals",
		metric.WithDescription("Total refused messages by reason."),
	); err != nil {
		return nil, err
	}
	if met.Escalations, err = m.Int64Counter("pitchlive.escalations",
		metric.WithDescription("Total questions escalated for human review."),
	); err != nil {
		return nil, err
	}
	if met.RateLimited, err = m.Int64Counter("pitchlive.rate_limited",
		metric.WithDescription("Total messages rejected by the rate limiter."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("pitchlive.provider.errors",
		metric.WithDescription("Total LLM provider errors by provider."),
	); err != nil {
		return nil, err
	}

	// Spend.
	if met.BudgetSpend, err = m.Float64Counter("pitchlive.budget.spend",
		metric.WithDescription("Estimated LLM spend in USD."),
		metric.WithUnit("{usd}"),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("pitchlive.http.request.duration",
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

// RecordReply records a produced reply with the standard attribute set.
func (m *Metrics) RecordReply(ctx context.Context, outcome, model string) {
	m.Replies.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("model", model),
		),
	)
}

// RecordRefusal records a guarded-off message by reason.
func (m *Metrics) RecordRefusal(ctx context.Context, reason string) {
	m.Refusals.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordProviderError records an LLM provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
