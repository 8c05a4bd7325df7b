package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newLoggedRouter(l *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery(l), AccessLog(l))
	return router
}

func TestAccessLog(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newLoggedRouter(zap.New(core))
	router.GET("/api/v1/invoices/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/api/v1/invoices/:id/finalize", func(c *gin.Context) {
		c.JSON(http.StatusConflict, gin.H{"code": "ALREADY_FINALIZED"})
	})

	t.Run("logs success at info and echoes request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/abc", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "HTTP Request", logs[0].Message)
		assert.Equal(t, zapcore.InfoLevel, logs[0].Level)
		fields := logs[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "/api/v1/invoices/:id", fields["route"])
		assert.Equal(t, "http", logs[0].LoggerName)
	})

	t.Run("logs client errors at warn and generates a request id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/abc/finalize", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})
}

func TestAccessLog_QuietPaths(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newLoggedRouter(zap.New(core))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, recorded.All())
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, accessLevel(http.StatusBadGateway, "/health"))
	assert.Equal(t, zapcore.WarnLevel, accessLevel(http.StatusNotFound, "/api/v1/invoices"))
	assert.Equal(t, zapcore.InfoLevel, accessLevel(http.StatusOK, "/api/v1/invoices"))
	assert.Equal(t, zapcore.DebugLevel, accessLevel(http.StatusOK, "/health"))
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	router := newLoggedRouter(zap.New(core))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"Internal server error","request_id":"`+
		w.Header().Get(RequestIDHeader)+`"}}`, w.Body.String())
	assert.NotEmpty(t, recorded.FilterMessage("Panic recovered").All())
}
