package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHeaders(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if rec.Header().Get("X-Frame-Options") != "DENY" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS sent over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   bool
	}{
		{"dashboard", http.MethodGet, "/api/dashboard?month=2024-07", "Mozilla/5.0", false},
		{"traversal", http.MethodGet, "/api/../../etc/passwd", "", true},
		{"dotenv", http.MethodGet, "/.env", "", true},
		{"script in query", http.MethodGet, "/api/rent-status?month=eval(1)", "", true},
		{"scanner agent", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
		{"long url", http.MethodGet, "/api/ledger?x=" + strings.Repeat("a", 2100), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			req := httptest.NewRequest(tt.method, "/", nil)
			req.URL.Path, req.URL.RawQuery, _ = strings.Cut(tt.target, "?")
			req.Header.Set("User-Agent", tt.agent)
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Errorf("suspicious = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddleware(t *testing.T) {
	d := NewDetector()
	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/", nil))
	if rec.Code != http.StatusBadRequest || called {
		t.Errorf("code = %d, called = %v", rec.Code, called)
	}
	if d.SuspiciousRequests() != 1 {
		t.Errorf("suspicious = %d", d.SuspiciousRequests())
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.5:4000", "", "", "203.0.113.5"},
		{"untrusted peer ignores forwarded", "203.0.113.5:4000", "198.51.100.1", "", "203.0.113.5"},
		{"trusted proxy", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"real ip fallback", "127.0.0.1:80", "garbage", "198.51.100.9", "198.51.100.9"},
		{"unparseable remote", "pipe", "", "", "pipe"},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("expected error")
	}
	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	if got := d.ExtractClientIP(req); got != "198.51.100.1" {
		t.Errorf("got %q", got)
	}
}
