package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func bumpSequence() (string, int64) {
	return `UPDATE "companies" SET "next_invoice_sequence"=next_invoice_sequence + 1`, 1
}

func newObservedSQLLogger(cfg SQLLogConfig) (*SQLLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewSQLLogger(zap.New(core), cfg), recorded
}

func TestSQLLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SQLLogConfig
		begin   time.Time
		err     error
		wantMsg string
		wantLvl zapcore.Level
	}{
		{"failure at error level", SQLLogConfig{Level: "error"}, time.Now(), errors.New("deadlock detected"), "SQL failed", zapcore.ErrorLevel},
		{"slow statement warns", SQLLogConfig{Level: "warn", SlowThreshold: time.Millisecond}, time.Now().Add(-time.Second), nil, "Slow SQL", zapcore.WarnLevel},
		{"ordinary statement at info", SQLLogConfig{Level: "info"}, time.Now(), nil, "SQL", zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, recorded := newObservedSQLLogger(tt.cfg)
			l.Trace(context.Background(), tt.begin, bumpSequence, tt.err)

			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.wantMsg, logs[0].Message)
			assert.Equal(t, tt.wantLvl, logs[0].Level)
			assert.Contains(t, logs[0].ContextMap()["sql"], "next_invoice_sequence")
		})
	}
}

func TestSQLLogger_TraceSkips(t *testing.T) {
	tests := []struct {
		name  string
		level string
		err   error
	}{
		{"record not found below info", "warn", gormlogger.ErrRecordNotFound},
		{"ordinary statement below info", "warn", nil},
		{"silent", "silent", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, recorded := newObservedSQLLogger(SQLLogConfig{Level: tt.level})
			l.Trace(context.Background(), time.Now(), bumpSequence, tt.err)
			assert.Zero(t, recorded.Len())
		})
	}
}

func TestSQLLogger_ContextFields(t *testing.T) {
	l, recorded := newObservedSQLLogger(SQLLogConfig{Level: "debug"})
	tenantID := uuid.New()
	ctx := WithTenantID(WithRequestID(context.Background(), "req-9"), tenantID)

	l.Trace(ctx, time.Now(), bumpSequence, nil)

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
}

func TestSQLLogger_LogModeCopies(t *testing.T) {
	l := NewSQLLogger(zap.NewNop(), SQLLogConfig{Level: "info"})
	quiet, ok := l.LogMode(gormlogger.Silent).(*SQLLogger)
	require.True(t, ok)

	assert.Equal(t, gormlogger.Info, l.level)
	assert.Equal(t, gormlogger.Silent, quiet.level)
	assert.Equal(t, defaultSlowSQL, quiet.slow)
}

func TestSQLLogger_ParamsFilter(t *testing.T) {
	sql := "SELECT * FROM invoices WHERE tenant_id = $1"

	_, params := NewSQLLogger(zap.NewNop(), SQLLogConfig{}).ParamsFilter(context.Background(), sql, "t-1")
	assert.Nil(t, params)

	_, params = NewSQLLogger(zap.NewNop(), SQLLogConfig{FullSQL: true}).ParamsFilter(context.Background(), sql, "t-1")
	assert.Equal(t, []any{"t-1"}, params)
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("other"))
}
