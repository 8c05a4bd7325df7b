package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowSQL = 200 * time.Millisecond

// SQLLogConfig configures the gorm statement logger
type SQLLogConfig struct {
	// Level is an application log level; see GormLevel.
	Level         string
	SlowThreshold time.Duration
	// FullSQL renders bound values into logged statements. Off, amounts and
	// tax ids never reach the logs.
	FullSQL bool
}

// SQLLogger writes gorm statements to zap. Failed statements log at error and
// slow ones at warn. Everything else, record-not-found included, logs at debug.
type SQLLogger struct {
	log     *zap.Logger
	level   gormlogger.LogLevel
	slow    time.Duration
	fullSQL bool
}

var (
	_ gormlogger.Interface = (*SQLLogger)(nil)
	_ gorm.ParamsFilter    = (*SQLLogger)(nil)
)

func NewSQLLogger(log *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowSQL
	}
	return &SQLLogger{
		log:     log.Named("sql"),
		level:   GormLevel(cfg.Level),
		slow:    slow,
		fullSQL: cfg.FullSQL,
	}
}

// GormLevel maps an application log level to a gorm one. Unknown levels
// keep warnings and errors.
func GormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}

func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *SQLLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, args...)
	}
}

func (l *SQLLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, args...)
	}
}

func (l *SQLLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, args...)
	}
}

// ParamsFilter drops bound values from rendered SQL unless FullSQL is set
func (l *SQLLogger) ParamsFilter(_ context.Context, sql string, params ...any) (string, []any) {
	if !l.fullSQL {
		return sql, nil
	}
	return sql, params
}

func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	var msg string
	var lvl gormlogger.LogLevel
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound):
		msg, lvl = "SQL failed", gormlogger.Error
	case elapsed > l.slow:
		msg, lvl = "Slow SQL", gormlogger.Warn
	default:
		msg, lvl = "SQL", gormlogger.Info
	}
	if l.level < lvl {
		return
	}

	sql, rows := fc()
	fields := append(l.contextFields(ctx),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
	switch lvl {
	case gormlogger.Error:
		l.log.Error(msg, append(fields, zap.Error(err))...)
	case gormlogger.Warn:
		l.log.Warn(msg, append(fields, zap.Duration("threshold", l.slow))...)
	default:
		l.log.Debug(msg, fields...)
	}
}

func (l *SQLLogger) contextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if tenantID, ok := GetTenantID(ctx); ok {
		fields = append(fields, zap.String("tenant_id", tenantID.String()))
	}
	return fields
}
