package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dd0wney/cluso-netimpact/pkg/logging"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
})

// --- BodySizeLimit ---

func TestBodySizeLimit_AllowsSmallRequest(t *testing.T) {
	handler := BodySizeLimit(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/", strings.NewReader("small body")))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestBodySizeLimit_RejectsLargeContentLength(t *testing.T) {
	handler := BodySizeLimit(100)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called for oversized request")
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(""))
	req.ContentLength = 1000
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status %d, got %d", http.StatusRequestEntityTooLarge, rr.Code)
	}
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Expected JSON error body: %v", err)
	}
	if body.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected code %d in body, got %d", http.StatusRequestEntityTooLarge, body.Code)
	}
}

func TestBodySizeLimit_LimitsActualBody(t *testing.T) {
	handler := BodySizeLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err == nil {
			t.Error("Expected read error for oversized chunked body")
		}
	}))

	req := httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 100)))
	req.ContentLength = -1
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

// --- PanicRecovery ---

func TestPanicRecovery_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	handler := PanicRecovery(logging.NewJSONLogger(&buf, logging.DebugLevel))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("secret detail")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/boom", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status %d, got %d", http.StatusInternalServerError, rr.Code)
	}
	if strings.Contains(rr.Body.String(), "secret detail") {
		t.Error("Panic value leaked to client")
	}
	if !strings.Contains(buf.String(), "secret detail") {
		t.Error("Panic value not logged")
	}
}

func TestPanicRecovery_NilLogger(t *testing.T) {
	rr := httptest.NewRecorder()
	PanicRecovery(nil)(ok).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

// --- RequestID ---

func TestRequestID_GeneratesNew(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("Expected request ID in context")
	}
	if got := rr.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("Expected header %q, got %q", seen, got)
	}
}

func TestRequestID_UsesSanitizedClientValue(t *testing.T) {
	tests := map[string]string{
		"abc-123":                  "abc-123",
		"abc<script>123":           "abcscript123",
		strings.Repeat("a", 100):   strings.Repeat("a", 64),
		"../../etc/passwd; rm -rf": "....etcpasswdrm-rf",
	}
	for in, want := range tests {
		var seen string
		handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r)
		}))
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, in)
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != want {
			t.Errorf("sanitize(%q) = %q, want %q", in, seen, want)
		}
	}
}

func TestGetRequestID_NoContext(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest("GET", "/", nil)); id != "" {
		t.Errorf("Expected empty ID, got %q", id)
	}
}

// --- Logging ---

func TestLogging_LevelsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.DebugLevel)
	handler := RequestID()(Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/spof", nil))

	var entry logging.LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line: %v (%s)", err, buf.String())
	}
	if entry.Level != logging.WarnLevel.String() {
		t.Errorf("Expected WARN level, got %v", entry.Level)
	}
	if entry.Fields["status"] != float64(http.StatusBadRequest) {
		t.Errorf("Expected status 400, got %v", entry.Fields["status"])
	}
	if entry.Fields["request_id"] == nil {
		t.Error("Expected request_id field")
	}
}

// --- Metrics ---

type fakeRecorder struct {
	mu       sync.Mutex
	requests []string
	sizes    []float64
	inFlight int
	peak     int
}

func (f *fakeRecorder) RecordHTTPRequest(method, path, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, method+" "+path+" "+status)
}

func (f *fakeRecorder) RecordResponseSize(_, _ string, size float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, size)
}

func (f *fakeRecorder) IncHTTPRequestsInFlight() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
}

func (f *fakeRecorder) DecHTTPRequestsInFlight() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
}

func TestMetrics_LabelsByPattern(t *testing.T) {
	rec := &fakeRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	})
	handler := Metrics(rec)(mux)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/v1/jobs/1234", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))

	want := []string{"GET GET /v1/jobs/{id} 200", "GET unmatched 404"}
	if len(rec.requests) != 2 || rec.requests[0] != want[0] || rec.requests[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, rec.requests)
	}
	if rec.sizes[0] != 5 {
		t.Errorf("Expected size 5, got %v", rec.sizes[0])
	}
	if rec.inFlight != 0 || rec.peak != 1 {
		t.Errorf("Expected in-flight back to 0 with peak 1, got %d/%d", rec.inFlight, rec.peak)
	}
}

func TestMetrics_NilRecorder(t *testing.T) {
	rr := httptest.NewRecorder()
	Metrics(nil)(ok).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

// --- CORS ---

func TestCORS(t *testing.T) {
	tests := []struct {
		name      string
		origins   []string
		origin    string
		preflight bool
		wantCode  int
		wantAllow string
	}{
		{"allowed", []string{"https://a.example"}, "https://a.example", false, 200, "https://a.example"},
		{"disallowed", []string{"https://a.example"}, "https://evil.example", false, 200, ""},
		{"wildcard", []string{"*"}, "https://any.example", false, 200, "https://any.example"},
		{"no config", nil, "https://a.example", false, 200, ""},
		{"preflight allowed", []string{"https://a.example"}, "https://a.example", true, 204, "https://a.example"},
		{"preflight refused", nil, "https://a.example", true, 403, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := "GET"
			if tt.preflight {
				method = "OPTIONS"
			}
			req := httptest.NewRequest(method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", "POST")
			}
			rr := httptest.NewRecorder()
			CORS(tt.origins)(ok).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Expected allow-origin %q, got %q", tt.wantAllow, got)
			}
		})
	}
}

// --- SecurityHeaders ---

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(false)(ok).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent without TLS")
	}

	rr = httptest.NewRecorder()
	SecurityHeaders(true)(ok).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Expected HSTS with TLS")
	}
}

// --- RateLimit ---

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 3, ClientExpiration: time.Minute})
	defer rl.Stop()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("c") {
			t.Fatalf("Request %d within burst denied", i)
		}
	}
	if rl.Allow("c") {
		t.Fatal("Request beyond burst allowed")
	}
	if !rl.Allow("other") {
		t.Fatal("Separate client should have its own bucket")
	}

	now = now.Add(100 * time.Millisecond)
	if !rl.Allow("c") {
		t.Fatal("Expected one token after 100ms at 10 req/s")
	}
	if rl.Clients() != 2 {
		t.Errorf("Expected 2 tracked clients, got %d", rl.Clients())
	}
}

func TestRateLimiter_MaxClientsEvicts(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, MaxClients: 2})
	defer rl.Stop()
	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c")
	if rl.Clients() != 2 {
		t.Errorf("Expected capacity to cap clients at 2, got %d", rl.Clients())
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1})
	defer rl.Stop()
	handler := RateLimit(rl, nil)(ok)

	req := httptest.NewRequest("POST", "/v1/impact", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("First request: expected 200, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Second request: expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	rr := httptest.NewRecorder()
	RateLimit(nil, nil)(ok).ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := ClientIP(req); got != "2001:db8::1" {
		t.Errorf("Expected 2001:db8::1, got %q", got)
	}
}
