package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/invoicing/backend/internal/domain/invoicing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName scopes the spans opened by the invoicing services
const TracerName = "invoicing-backend"

// Span attribute keys
const (
	SpanAttrInvoiceID     = "invoice.id"
	SpanAttrInvoiceNumber = "invoice.number"
	SpanAttrInvoiceStatus = "invoice.status"
	SpanAttrCompanyID     = "invoice.company_id"
	SpanAttrClientID      = "invoice.client_id"
	SpanAttrTenantID      = "tenant.id"
	SpanAttrActorID       = "actor.id"
	SpanAttrSnapshotID    = "snapshot.id"
	SpanAttrNumberingMode = "numbering.mode"
	SpanAttrAttempt       = "attempt"
	SpanAttrRequestID     = "request.id"
)

// StartServiceSpan opens an internal span named service.method on the global
// tracer. The caller ends it.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "finalize")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, service+"."+method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// SetAttributes tags span with alternating key/value pairs. Pairs whose key
// is not a string are skipped, as is a trailing key without a value.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	span.SetAttributes(attrs...)
}

func SetAttribute(span trace.Span, key string, value any) {
	if span != nil {
		span.SetAttributes(toAttribute(key, value))
	}
}

// SetInvoice tags span with the invoice identity, status and, once
// allocated, its number.
func SetInvoice(span trace.Span, inv *invoicing.Invoice) {
	if span == nil || inv == nil {
		return
	}
	span.SetAttributes(
		attribute.String(SpanAttrInvoiceID, inv.ID.String()),
		attribute.String(SpanAttrTenantID, inv.TenantID.String()),
		attribute.String(SpanAttrCompanyID, inv.CompanyID.String()),
		attribute.String(SpanAttrInvoiceStatus, string(inv.Status())),
	)
	if number := inv.FullNumber(); number != "" {
		span.SetAttributes(attribute.String(SpanAttrInvoiceNumber, number))
	}
}

// RecordError marks span failed with err. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case time.Time:
		return attribute.String(key, v.UTC().Format(time.RFC3339))
	case fmt.Stringer:
		return attribute.String(key, v.String())
	}
	return attribute.String(key, fmt.Sprint(value))
}
