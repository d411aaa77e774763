package observe

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs redirects the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

var hexTraceID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	tp, _ := recordingTracer(t)
	seen := make(map[string]bool)
	for range 50 {
		ctx, span := tp.Tracer("test").Start(context.Background(), "utterance")
		cid := CorrelationID(ctx)
		span.End()
		if !hexTraceID.MatchString(cid) {
			t.Fatalf("CorrelationID = %q, want 32 hex chars", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation id %s", cid)
		}
		seen[cid] = true
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := recordingTracer(t)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, span := StartSpan(context.Background(), "emotion.analyze")
	if CorrelationID(ctx) == "" {
		t.Error("span has no trace id")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "emotion.analyze" {
		t.Fatalf("spans = %v", spans)
	}
	if Tracer() == nil {
		t.Error("Tracer() returned nil")
	}
}

func TestLogger_Attributes(t *testing.T) {
	tp, _ := recordingTracer(t)
	traced, span := tp.Tracer("test").Start(context.Background(), "ws")
	defer span.End()

	tests := []struct {
		name    string
		ctx     context.Context
		want    []string
		notWant []string
	}{
		{
			name:    "bare context",
			ctx:     context.Background(),
			notWant: []string{"trace_id", "span_id", "session_id"},
		},
		{
			name:    "span only",
			ctx:     traced,
			want:    []string{"trace_id=" + CorrelationID(traced), "span_id="},
			notWant: []string{"session_id"},
		},
		{
			name: "session and span",
			ctx:  WithSessionID(traced, "sess-42"),
			want: []string{"session_id=sess-42", "trace_id="},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			Logger(tt.ctx).Info("frame")
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log %q missing %q", out, w)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(out, nw) {
					t.Errorf("log %q should not contain %q", out, nw)
				}
			}
		})
	}

	if SessionID(context.Background()) != "" {
		t.Error("SessionID on a bare context should be empty")
	}
}

func TestNewTracerProvider_Sampling(t *testing.T) {
	tests := []struct {
		name    string
		ratio   float64
		sampled bool
	}{
		{"default records everything", 0, true},
		{"ratio one records everything", 1, true},
		{"tiny ratio drops roots", 1e-12, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := newTracerProvider(nil, ProviderConfig{SampleRatio: tt.ratio})
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			_, span := tp.Tracer("test").Start(context.Background(), "root")
			defer span.End()
			if got := span.SpanContext().IsSampled(); got != tt.sampled {
				t.Errorf("IsSampled = %v, want %v", got, tt.sampled)
			}
		})
	}
}

func TestDetach(t *testing.T) {
	t.Parallel()

	tp, _ := recordingTracer(t)
	parent, cancel := context.WithCancel(WithSessionID(context.Background(), "sess-1"))
	ctx, span := tp.Tracer("test").Start(parent, "utterance")
	defer span.End()

	detached := Detach(ctx)
	cancel()

	if detached.Err() != nil {
		t.Errorf("detached context cancelled: %v", detached.Err())
	}
	if CorrelationID(detached) != CorrelationID(ctx) || SessionID(detached) != "sess-1" {
		t.Error("detached context lost span or session id")
	}
}
