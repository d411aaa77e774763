// Package observe provides application-wide observability primitives for
// soundwatch: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] and served by
// [MetricsHandler]. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all soundwatch metrics.
const meterName = "github.com/MrWong99/soundwatch"

// Utterance outcomes recorded by [Metrics.RecordUtterance].
const (
	OutcomeEmitted       = "emitted"
	OutcomeNeutral       = "neutral"
	OutcomeEmptyText     = "empty_text"
	OutcomeEmptyBuffer   = "empty_buffer"
	OutcomeOutOfRange    = "out_of_range"
	OutcomeProtocolError = "protocol_error"
	OutcomeInferenceFail = "inference_error"
	OutcomeEncodeFail    = "encode_error"
	OutcomeDiscarded     = "discarded"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// SentimentDuration tracks text sentiment classification latency.
	SentimentDuration metric.Float64Histogram

	// FeatureDuration tracks acoustic feature extraction latency.
	FeatureDuration metric.Float64Histogram

	// EmbeddingDuration tracks sentence embedding latency.
	EmbeddingDuration metric.Float64Histogram

	// ClassifierDuration tracks remote model latency.
	ClassifierDuration metric.Float64Histogram

	// InferenceDuration tracks end-to-end emotion inference for one utterance.
	InferenceDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// Utterances counts final transcripts by outcome. Attribute: outcome.
	Utterances metric.Int64Counter

	// Emotions counts emitted emotion labels. Attributes: emotion, source.
	Emotions metric.Int64Counter

	// NoiseEvents counts stored realtime noise rows. Attribute: label.
	NoiseEvents metric.Int64Counter

	// PushMessages counts push deliveries. Attributes: topic, status.
	PushMessages metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live streaming sessions.
	ActiveSessions metric.Int64UpDownCounter

	// InflightInference tracks utterances currently being classified.
	InflightInference metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, route (the matched mux pattern), status_class.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Feature
// extraction and the remote model dominate, so the range reaches 10 s.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histogram := func(name, desc string) (metric.Float64Histogram, error) {
		return m.Float64Histogram(name,
			metric.WithDescription(desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		)
	}

	// Histograms.
	if met.SentimentDuration, err = histogram("soundwatch.sentiment.duration",
		"Latency of text sentiment classification."); err != nil {
		return nil, err
	}
	if met.FeatureDuration, err = histogram("soundwatch.features.duration",
		"Latency of acoustic feature extraction."); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = histogram("soundwatch.embedding.duration",
		"Latency of sentence embedding."); err != nil {
		return nil, err
	}
	if met.ClassifierDuration, err = histogram("soundwatch.classifier.duration",
		"Latency of the remote emotion model."); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = histogram("soundwatch.inference.duration",
		"End-to-end emotion inference latency per utterance."); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("soundwatch.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("soundwatch.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("soundwatch.utterances",
		metric.WithDescription("Final transcripts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Emotions, err = m.Int64Counter("soundwatch.emotions",
		metric.WithDescription("Emitted emotion labels by emotion and source."),
	); err != nil {
		return nil, err
	}
	if met.NoiseEvents, err = m.Int64Counter("soundwatch.noise.events",
		metric.WithDescription("Stored realtime noise events by label."),
	); err != nil {
		return nil, err
	}
	if met.PushMessages, err = m.Int64Counter("soundwatch.push.messages",
		metric.WithDescription("Push notification deliveries by topic and status."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("soundwatch.active_sessions",
		metric.WithDescription("Number of live streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.InflightInference, err = m.Int64UpDownCounter("soundwatch.inflight_inference",
		metric.WithDescription("Number of utterances currently being classified."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("soundwatch.http.request.duration",
		metric.WithDescription("HTTP request latency by method, route and status class."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordUtterance records the outcome of one final transcript.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordEmotion records an emitted emotion label.
func (m *Metrics) RecordEmotion(ctx context.Context, emotion, source string) {
	m.Emotions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("emotion", emotion),
			attribute.String("source", source),
		),
	)
}

// RecordNoiseEvent records a stored realtime noise row.
func (m *Metrics) RecordNoiseEvent(ctx context.Context, label string) {
	m.NoiseEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
}

// RecordPush records push deliveries for one topic.
func (m *Metrics) RecordPush(ctx context.Context, topic, status string, n int) {
	m.PushMessages.Add(ctx, int64(n),
		metric.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("status", status),
		),
	)
}
