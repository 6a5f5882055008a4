package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		checks map[string]ReadyCheck
		want   int
	}{
		{"no checks", nil, http.StatusOK},
		{"all ok", map[string]ReadyCheck{"db": func(context.Context) error { return nil }}, http.StatusOK},
		{"redis down", map[string]ReadyCheck{
			"db":    func(context.Context) error { return nil },
			"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
		}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(tc.checks)
			r := gin.New()
			r.GET("/readyz", h.Ready)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tc.want {
				t.Fatalf("status: want=%d got=%d", tc.want, rec.Code)
			}
		})
	}
}
