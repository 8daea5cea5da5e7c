package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("ok"))
	})
}

func TestCORS_AllowedOrigins(t *testing.T) {
	allowed := map[string]struct{}{"https://photos.example.com": {}}
	handler := CORSWithOrigins(allowed)(okHandler())

	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{"whitelisted", "https://photos.example.com", "https://photos.example.com"},
		{"localhost", "http://localhost:5173", "http://localhost:5173"},
		{"foreign", "https://evil.example.com", ""},
		{"no origin", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/moments", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != tc.want {
				t.Errorf("expected Access-Control-Allow-Origin '%s', got '%s'", tc.want, got)
			}
			if recorder.Code != http.StatusTeapot {
				t.Errorf("expected request to reach handler, got status %d", recorder.Code)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORSWithOrigins(nil)(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/moments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected status 200 for preflight, got %d", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Errorf("preflight must not reach the handler, got body '%s'", recorder.Body.String())
	}
}

func TestParseAllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", " https://a.example.com ,,https://b.example.com")

	origins := parseAllowedOrigins()
	if len(origins) != 2 {
		t.Fatalf("expected 2 origins, got %d", len(origins))
	}
	if _, ok := origins["https://a.example.com"]; !ok {
		t.Error("expected https://a.example.com to be allowed")
	}
}

func TestSecurityHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()
	SecurityHeaders()(okHandler()).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected X-Content-Type-Options nosniff")
	}
	if recorder.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("expected X-Frame-Options DENY")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	recorder := httptest.NewRecorder()
	RequestLogger(logger)(okHandler()).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v\n%s", err, buf.String())
	}
	if entry["path"] != "/api/v1/stats" {
		t.Errorf("expected path '/api/v1/stats', got '%v'", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Errorf("expected status %d, got %v", http.StatusTeapot, entry["status"])
	}
	if entry["bytes"] != float64(2) {
		t.Errorf("expected 2 bytes, got %v", entry["bytes"])
	}
}
