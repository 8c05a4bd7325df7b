package config

import (
	"errors"
	"fmt"
	"slices"
)

const minProductionSecret = 32

// problems collects every failed check so one run reports them all
type problems []error

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

// Validate rejects settings the service cannot run with. Production adds
// rules on secrets, TLS and data exposure.
func (c *Config) Validate() error {
	var p problems

	db := c.Database
	p.check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	p.check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	p.check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	inv := c.Invoicing
	p.check(inv.SerialWidth >= 1 && inv.SerialWidth <= 12,
		"invoicing.serial_width must be between 1 and 12, got %d", inv.SerialWidth)
	p.check(inv.AllocationRetries >= 1, "invoicing.allocation_retries must be positive")

	p.check(c.Scheduler.OverdueSweepHour >= 0 && c.Scheduler.OverdueSweepHour <= 23,
		"scheduler.overdue_sweep_hour must be between 0 and 23, got %d", c.Scheduler.OverdueSweepHour)
	p.check(!c.Storage.Enabled || c.Storage.Bucket != "",
		"storage.bucket is required when storage is enabled")
	p.check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)

	if c.IsProduction() {
		c.checkProduction(&p)
	}
	return errors.Join(p...)
}

func (c *Config) checkProduction(p *problems) {
	if c.Auth.Secret == "" {
		p.check(false, "auth.secret is required in production")
	} else {
		p.check(len(c.Auth.Secret) >= minProductionSecret,
			"auth.secret must be at least %d characters in production", minProductionSecret)
	}
	p.check(c.Database.Password != "", "database.password is required in production")
	p.check(c.Database.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
	p.check(!slices.Contains(c.HTTP.CORSAllowOrigins, "*"),
		"http.cors_allow_origins cannot be '*' in production")
	p.check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
}
