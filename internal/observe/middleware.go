package observe

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader carries the trace id back to the client so that app bug
// reports can be matched with server logs.
const CorrelationHeader = "X-Correlation-ID"

// quietRoutes are polled by orchestrators and scrapers; their completions log
// at debug level.
var quietRoutes = map[string]bool{
	"GET /healthz": true,
	"GET /readyz":  true,
	"GET /metrics": true,
}

// trackingWriter remembers the response status and body size.
type trackingWriter struct {
	http.ResponseWriter
	status   int
	written  int64
	upgraded bool
}

func (tw *trackingWriter) WriteHeader(code int) {
	if tw.status == 0 {
		tw.status = code
	}
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *trackingWriter) Write(p []byte) (int, error) {
	if tw.status == 0 {
		tw.status = http.StatusOK
	}
	n, err := tw.ResponseWriter.Write(p)
	tw.written += int64(n)
	return n, err
}

// Hijack passes the websocket upgrade on /ws through to the server.
func (tw *trackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := tw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("observe: connection cannot be hijacked")
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}
	tw.upgraded = true
	tw.status = http.StatusSwitchingProtocols
	return conn, brw, nil
}

func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (tw *trackingWriter) Unwrap() http.ResponseWriter { return tw.ResponseWriter }

func (tw *trackingWriter) code() int {
	if tw.status == 0 {
		return http.StatusOK
	}
	return tw.status
}

// Middleware traces, times and logs every request served by next.
//
// Incoming W3C traceparent headers continue the caller's trace. The metric
// and span are labelled with the mux pattern that matched ("GET
// /noticeContent/{id}") rather than the raw path, so ids never become label
// values. For the /ws upgrade the duration covers the whole session.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set(CorrelationHeader, cid)
			}

			tw := &trackingWriter{ResponseWriter: w}
			r = r.WithContext(ctx)
			next.ServeHTTP(tw, r)

			// ServeMux fills in Pattern on the request it routed.
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			code := tw.code()
			elapsed := time.Since(start)

			span.SetName("HTTP " + route)
			span.SetAttributes(semconv.HTTPRoute(route), semconv.HTTPResponseStatusCode(code))

			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("route", route),
				attribute.String("status_class", strconv.Itoa(code/100)+"xx"),
			))

			level := slog.LevelInfo
			if quietRoutes[route] {
				level = slog.LevelDebug
			}
			Logger(ctx).LogAttrs(ctx, level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", code),
				slog.Int64("bytes", tw.written),
				slog.Bool("upgraded", tw.upgraded),
				slog.Duration("duration", elapsed),
			)
		})
	}
}

// MetricsHandler serves the Prometheus registry the exporter from
// [InitProvider] writes to.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
