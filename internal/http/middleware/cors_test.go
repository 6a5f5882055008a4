package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(r http.Handler, origin, method string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/actions", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", method)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSConfiguredOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com"}))
	r.POST("/api/actions", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	rec := preflight(r, "https://app.example.com", http.MethodPost)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: want=%d got=%d", http.StatusNoContent, rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow-origin: want=%q got=%q", "https://app.example.com", got)
	}

	rec = preflight(r, "http://localhost:5173", http.MethodPost)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin: want no allow-origin got=%q", got)
	}
}

func TestCORSDefaultsAndExposedHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(nil))
	r.GET("/api/missions", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/missions", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin: want=%q got=%q", "http://localhost:5173", got)
	}
	exposed := rec.Header().Get("Access-Control-Expose-Headers")
	for _, h := range []string{headerTraceID, headerRequestID} {
		if !strings.Contains(strings.ToLower(exposed), strings.ToLower(h)) {
			t.Fatalf("expose headers: want %s in %q", h, exposed)
		}
	}
}
