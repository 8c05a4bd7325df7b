package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// unmatchedRoute labels requests no route handled
const unmatchedRoute = "unmatched"

var responseSizeBuckets = []float64{128, 512, 1024, 4096, 16384, 65536, 262144, 1048576}

type httpInstruments struct {
	requests *telemetry.Counter
	latency  *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in  httpInstruments
		err error
	)
	if in.requests, err = telemetry.NewCounter(meter, "http_server_request_total",
		"HTTP requests served", "{request}"); err != nil {
		return nil, err
	}
	if in.latency, err = telemetry.NewSecondsHistogram(meter, "http_server_request_duration_seconds",
		"HTTP request latency", telemetry.HTTPDurationBuckets); err != nil {
		return nil, err
	}
	if in.size, err = telemetry.NewHistogram(meter, "http_server_response_size_bytes",
		"HTTP response body size", "By", responseSizeBuckets...); err != nil {
		return nil, err
	}
	if in.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &in, nil
}

// HTTPMetrics records request metrics on the exporting pipelines. It passes
// requests through untouched when metric export is off.
func HTTPMetrics(p *telemetry.Pipelines) gin.HandlerFunc {
	if !p.MetricsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(p.Meter("http.server"))
}

// HTTPMetricsWithMeter records request count, latency, response size and
// in-flight requests on meter. Routes are labelled by pattern, never by path.
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	in, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		in.latency.RecordDuration(ctx, time.Since(start), attrs...)
		if n := c.Writer.Size(); n > 0 {
			in.size.Record(ctx, float64(n), attrs...)
		}

		attrs = append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		if actor, ok := GetActor(c); ok {
			attrs = append(attrs, telemetry.AttrTenantID.String(actor.TenantID.String()))
		}
		in.requests.Inc(ctx, attrs...)
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}
