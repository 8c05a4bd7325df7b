package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type itemsPayload struct {
	Items []string `json:"items" binding:"required"`
}

// limitedEngine binds an itemsPayload behind a BodyLimit of limit bytes
func limitedEngine(limit int64) *gin.Engine {
	engine := gin.New()
	engine.Use(BodyLimit(limit))
	engine.PUT("/api/v1/invoices/:id/items", func(c *gin.Context) {
		var req itemsPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(req.Items)})
	})
	return engine
}

func putItems(engine *gin.Engine, body string, declareLength bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, "/api/v1/invoices/1/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if !declareLength {
		req.ContentLength = -1
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestBodyLimit(t *testing.T) {
	small := `{"items":["a","b"]}`
	large := `{"items":["` + strings.Repeat("x", 512) + `"]}`

	tests := []struct {
		name     string
		limit    int64
		body     string
		declared bool
		status   int
	}{
		{"within limit", 256, small, true, http.StatusOK},
		{"declared oversize", 256, large, true, http.StatusRequestEntityTooLarge},
		{"undeclared oversize", 256, large, false, http.StatusRequestEntityTooLarge},
		{"limit disabled", 0, large, true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := putItems(limitedEngine(tt.limit), tt.body, tt.declared)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusRequestEntityTooLarge {
				assert.Contains(t, w.Body.String(), ErrCodeRequestTooLarge)
				assert.Contains(t, w.Body.String(), "256 bytes")
			}
		})
	}
}

func TestBodyLimit_BodylessRequest(t *testing.T) {
	engine := gin.New()
	engine.Use(BodyLimit(8))
	engine.GET("/api/v1/invoices", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
