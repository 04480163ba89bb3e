package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	applog "ledger/internal/log"
)

func TestHandler_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	m := NewMiddleware(applog.New(applog.Config{
		Component: applog.ComponentHTTP,
		Handler:   slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}))

	var seen string
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		applog.FromContext(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req_given")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if seen != "req_given" || rec.Header().Get(HeaderRequestID) != "req_given" {
		t.Errorf("request id = %q / header %q, want req_given", seen, rec.Header().Get(HeaderRequestID))
	}
	out := buf.String()
	if !strings.Contains(out, "msg=\"inside handler\"") || !strings.Contains(out, "request_id=req_given") {
		t.Errorf("handler log missing request id:\n%s", out)
	}
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status_code=418") {
		t.Errorf("completion log not at WARN with status:\n%s", out)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d, want 1", got)
	}
}

func TestHandler_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewMiddleware(nil).Handler())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if id := rec.Header().Get(HeaderRequestID); !strings.HasPrefix(id, "req_") || len(id) != len("req_")+16 {
		t.Errorf("generated id = %q", id)
	}
}
