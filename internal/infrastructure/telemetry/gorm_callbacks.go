package telemetry

import (
	"errors"

	"gorm.io/gorm"
)

// gormOperations pairs each gorm processor with the operation label used in
// metrics and the suffix otelgorm uses for its own callbacks.
var gormOperations = []struct {
	processor string
	operation string
	otelName  string
}{
	{"create", "INSERT", "create"},
	{"query", "SELECT", "select"},
	{"update", "UPDATE", "update"},
	{"delete", "DELETE", "delete"},
	{"row", "", "row"},
	{"raw", "", "raw"},
}

// registerAroundOperations installs before and after hooks around every gorm
// statement kind. When beforeOtelAfter is set the after hook runs ahead of
// otelgorm's span-ending callback so it can still see the statement span.
// An empty operation label means the operation is detected from the SQL text.
func registerAroundOperations(db *gorm.DB, name string, before func(*gorm.DB), after func(operation string) func(*gorm.DB), beforeOtelAfter bool) error {
	cb := db.Callback()
	var errs []error
	for _, op := range gormOperations {
		anchor := ""
		if beforeOtelAfter {
			anchor = "otel:after:" + op.otelName
		}
		gormName := "gorm:" + op.processor

		switch op.processor {
		case "create":
			errs = append(errs,
				cb.Create().Before(gormName).Register(name+":before_create", before),
				cb.Create().After(gormName).Before(anchor).Register(name+":after_create", after(op.operation)))
		case "query":
			errs = append(errs,
				cb.Query().Before(gormName).Register(name+":before_query", before),
				cb.Query().After(gormName).Before(anchor).Register(name+":after_query", after(op.operation)))
		case "update":
			errs = append(errs,
				cb.Update().Before(gormName).Register(name+":before_update", before),
				cb.Update().After(gormName).Before(anchor).Register(name+":after_update", after(op.operation)))
		case "delete":
			errs = append(errs,
				cb.Delete().Before(gormName).Register(name+":before_delete", before),
				cb.Delete().After(gormName).Before(anchor).Register(name+":after_delete", after(op.operation)))
		case "row":
			errs = append(errs,
				cb.Row().Before(gormName).Register(name+":before_row", before),
				cb.Row().After(gormName).Before(anchor).Register(name+":after_row", after(op.operation)))
		case "raw":
			errs = append(errs,
				cb.Raw().Before(gormName).Register(name+":before_raw", before),
				cb.Raw().After(gormName).Before(anchor).Register(name+":after_raw", after(op.operation)))
		}
	}
	return errors.Join(errs...)
}
