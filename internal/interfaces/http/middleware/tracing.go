// Package middleware provides HTTP middleware for the invoicing API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// untracedPaths are polled often enough to drown real traffic
var untracedPaths = map[string]struct{}{
	"/health": {},
}

// RequestSpan starts a server span per request, named "METHOD route".
// It passes requests through untouched when traces are not exported.
func RequestSpan(p *telemetry.Pipelines, serviceName string) gin.HandlerFunc {
	if !p.TracesEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return requestSpan(serviceName)
}

func requestSpan(serviceName string, opts ...otelgin.Option) gin.HandlerFunc {
	opts = append(opts, otelgin.WithFilter(func(r *http.Request) bool {
		_, skip := untracedPaths[r.URL.Path]
		return !skip
	}))
	return otelgin.Middleware(serviceName, opts...)
}

// AnnotateSpan tags the request span once the handler chain has run: request,
// tenant and actor IDs, and an error status for 4xx and 5xx responses.
// Place it after RequestSpan; the actor is read back after the route group ran.
func AnnotateSpan() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if requestID := logger.GetRequestID(c.Request.Context()); requestID != "" {
			span.SetAttributes(attribute.String(telemetry.SpanAttrRequestID, requestID))
		}
		if actor, ok := GetActor(c); ok {
			span.SetAttributes(
				attribute.String(telemetry.SpanAttrTenantID, actor.TenantID.String()),
				attribute.String(telemetry.SpanAttrActorID, actor.UserID.String()),
			)
		}
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
