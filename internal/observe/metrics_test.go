package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// point returns the int64 sum data point of name whose attribute key has the
// given value, summed over the other attributes.
func point(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	met := findMetric(rm, name)
	if met == nil {
		return 0, false
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		return 0, false
	}
	var total int64
	found := false
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
			found = true
		}
	}
	return total, found
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "vito", "recognizer", "ok")
	m.RecordProviderRequest(ctx, "vito", "recognizer", "ok")
	m.RecordProviderRequest(ctx, "vito", "recognizer", "error")
	m.RecordProviderError(ctx, "tfserving", "classifier")
	m.RecordUtterance(ctx, OutcomeEmitted)
	m.RecordUtterance(ctx, OutcomeEmitted)
	m.RecordUtterance(ctx, OutcomeEmptyText)
	m.RecordEmotion(ctx, "angry", "model")
	m.RecordEmotion(ctx, "neutrality", "sentiment")
	m.RecordNoiseEvent(ctx, "dog")
	m.RecordPush(ctx, "dog", "sent", 3)
	m.RecordPush(ctx, "dog", "failed", 1)

	rm := collect(t, reader)
	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"soundwatch.provider.requests", "status", "ok", 2},
		{"soundwatch.provider.requests", "status", "error", 1},
		{"soundwatch.provider.errors", "kind", "classifier", 1},
		{"soundwatch.utterances", "outcome", OutcomeEmitted, 2},
		{"soundwatch.utterances", "outcome", OutcomeEmptyText, 1},
		{"soundwatch.emotions", "source", "sentiment", 1},
		{"soundwatch.emotions", "emotion", "angry", 1},
		{"soundwatch.noise.events", "label", "dog", 1},
		{"soundwatch.push.messages", "topic", "dog", 4},
		{"soundwatch.push.messages", "status", "failed", 1},
	}
	for _, tt := range tests {
		got, ok := point(rm, tt.metric, tt.key, tt.value)
		if !ok || got != tt.want {
			t.Errorf("%s{%s=%q} = %d (found %v), want %d", tt.metric, tt.key, tt.value, got, ok, tt.want)
		}
	}
}

func TestStageHistograms(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()
	stages := map[string]func(float64){
		"soundwatch.sentiment.duration":  func(v float64) { m.SentimentDuration.Record(ctx, v) },
		"soundwatch.features.duration":   func(v float64) { m.FeatureDuration.Record(ctx, v) },
		"soundwatch.embedding.duration":  func(v float64) { m.EmbeddingDuration.Record(ctx, v) },
		"soundwatch.classifier.duration": func(v float64) { m.ClassifierDuration.Record(ctx, v) },
		"soundwatch.inference.duration":  func(v float64) { m.InferenceDuration.Record(ctx, v) },
	}
	for _, record := range stages {
		record(0.2)
		record(3.5)
	}

	rm := collect(t, reader)
	for name := range stages {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("%s not recorded", name)
			continue
		}
		hist := met.Data.(metricdata.Histogram[float64])
		if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
			t.Errorf("%s data points = %+v", name, hist.DataPoints)
			continue
		}
		if got := hist.DataPoints[0].Bounds; len(got) != len(latencyBuckets) {
			t.Errorf("%s bounds = %v, want %v", name, got, latencyBuckets)
		}
	}
}

func TestGauges(t *testing.T) {
	t.Parallel()

	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 2)
	m.ActiveSessions.Add(ctx, -1)
	m.InflightInference.Add(ctx, 3)

	rm := collect(t, reader)
	for name, want := range map[string]int64{
		"soundwatch.active_sessions":    1,
		"soundwatch.inflight_inference": 3,
	} {
		met := findMetric(rm, name)
		if met == nil {
			t.Errorf("%s not recorded", name)
			continue
		}
		sum := met.Data.(metricdata.Sum[int64])
		if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != want {
			t.Errorf("%s = %+v, want %d", name, sum.DataPoints, want)
		}
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	t.Parallel()

	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
