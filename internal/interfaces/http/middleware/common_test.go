package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
)

func corsRequest(origins []string, method, origin string) *httptest.ResponseRecorder {
	engine := gin.New()
	engine.Use(CORS(config.HTTPConfig{CORSAllowOrigins: origins}))
	engine.GET("/api/v1/invoices", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/api/v1/invoices", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	const billing = "https://billing.example.com"

	t.Run("listed origin with credentials", func(t *testing.T) {
		w := corsRequest([]string{billing}, http.MethodGet, billing)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, billing, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "X-Request-Id")
	})

	t.Run("unlisted origin refused", func(t *testing.T) {
		w := corsRequest([]string{billing}, http.MethodGet, "https://evil.example.com")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("empty list refuses cross origin", func(t *testing.T) {
		w := corsRequest(nil, http.MethodGet, billing)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no origin header passes", func(t *testing.T) {
		w := corsRequest(nil, http.MethodGet, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wildcard drops credentials", func(t *testing.T) {
		w := corsRequest([]string{"*"}, http.MethodGet, "https://any.example.com")
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		w := corsRequest([]string{billing}, http.MethodOptions, billing)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "43200", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})
}

func TestCORSConfigFrom(t *testing.T) {
	cfg := CORSConfigFrom(config.HTTPConfig{
		CORSAllowOrigins: []string{"https://a.example.com"},
		CORSAllowMethods: []string{"GET"},
	})
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"GET"}, cfg.AllowMethods)
	assert.Equal(t, defaultCORSHeaders, cfg.AllowHeaders)

	assert.NoError(t, CORSConfigFrom(config.HTTPConfig{}).Validate())
	assert.NoError(t, CORSConfigFrom(config.HTTPConfig{CORSAllowOrigins: []string{"*"}}).Validate())
}

func TestSecure(t *testing.T) {
	engine := gin.New()
	engine.Use(Secure())
	engine.GET("/api/v1/invoices", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
}
