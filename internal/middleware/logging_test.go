package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/ministry/internal/metrics"
)

type statusCollector struct {
	metrics.Nop
	statuses []int
}

func (c *statusCollector) RecordHTTPStatus(code int) { c.statuses = append(c.statuses, code) }

func decodeLog(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "INFO"},
		{"client error", http.StatusNotFound, "WARN"},
		{"server error", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			collector := &statusCollector{}

			handler := NewLoggingMiddleware(logger, collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/posts", nil))

			entry := decodeLog(t, &buf)
			if entry["method"] != "GET" || entry["path"] != "/api/posts" {
				t.Errorf("entry = %v", entry)
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if _, ok := entry["duration_ms"]; !ok {
				t.Error("expected duration_ms")
			}
			if _, ok := entry["user_id"]; ok {
				t.Error("anonymous request should not log user_id")
			}
			if len(collector.statuses) != 1 || collector.statuses[0] != tt.status {
				t.Errorf("recorded statuses = %v", collector.statuses)
			}
		})
	}
}

func TestLoggingMiddleware_UserIDFromSession(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	client := newFakeIdentity()
	client.add("sess-9", "user-9")
	chain := NewLoggingMiddleware(logger, nil)(
		NewSessionMiddleware(storeFactory(client), time.Second)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			}),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/pages/home", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-9"})
	chain.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLog(t, &buf)
	if entry["user_id"] != "user-9" {
		t.Errorf("user_id = %v, want user-9", entry["user_id"])
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200 from body write", entry["status"])
	}
}
