package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func text(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body+c.Param("id")) }
}

func testResources(mw ...gin.HandlerFunc) []Resource {
	return []Resource{
		{
			Prefix:     "/invoices",
			Middleware: mw,
			Routes: []Route{
				POST("/calculate", text("calculate")),
				GET("/:id", text("get ")),
				POST("/:id/finalize", text("finalize ")),
			},
		},
		{
			Prefix: "/companies",
			Routes: []Route{PUT("/:id/prefix", text("prefix "))},
		},
	}
}

func TestMount(t *testing.T) {
	engine := gin.New()
	api := Mount(engine, "v1", testResources()...)
	assert.Equal(t, "/api/v1", api.BasePath())

	tests := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodPost, "/api/v1/invoices/calculate", http.StatusOK, "calculate"},
		{http.MethodGet, "/api/v1/invoices/abc", http.StatusOK, "get abc"},
		{http.MethodPost, "/api/v1/invoices/abc/finalize", http.StatusOK, "finalize abc"},
		{http.MethodPut, "/api/v1/companies/42/prefix", http.StatusOK, "prefix 42"},
		{http.MethodGet, "/api/v2/invoices/abc", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := serve(engine, tt.method, tt.path)
		assert.Equal(t, tt.code, w.Code, "%s %s", tt.method, tt.path)
		if tt.body != "" {
			assert.Equal(t, tt.body, w.Body.String())
		}
	}
}

func TestMount_ResourceMiddleware(t *testing.T) {
	engine := gin.New()
	tag := func(c *gin.Context) {
		c.Header("X-Actor-Checked", "yes")
		c.Next()
	}
	Mount(engine, "v1", testResources(nil, tag)...)

	w := serve(engine, http.MethodGet, "/api/v1/invoices/1")
	assert.Equal(t, "yes", w.Header().Get("X-Actor-Checked"))

	w = serve(engine, http.MethodPut, "/api/v1/companies/1/prefix")
	assert.Empty(t, w.Header().Get("X-Actor-Checked"))
}

func TestEndpoints(t *testing.T) {
	assert.Equal(t, []string{
		"POST /api/v1/invoices/calculate",
		"GET /api/v1/invoices/:id",
		"POST /api/v1/invoices/:id/finalize",
		"PUT /api/v1/companies/:id/prefix",
	}, Endpoints("v1", testResources()...))
}
