package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByOperatorOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.9:12345"

	if got := KeyByOperatorOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("expected ip key; got %q", got)
	}
	c.Set(operatorKey, "ab12")
	if got := KeyByOperatorOrIP()(c); got != "op:ab12" {
		t.Fatalf("expected operator key; got %q", got)
	}
}

func TestRateLimiter_ReusesAndCollectsBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByOperatorOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
	lim := rl.limiterFor("k1")
	if rl.limiterFor("k1") != lim {
		t.Fatalf("expected the same bucket")
	}

	rl.ttl = time.Nanosecond
	rl.lookups = gcEvery - 1
	time.Sleep(time.Millisecond)
	if rl.limiterFor("k1") == lim {
		t.Fatalf("expected idle bucket to be replaced")
	}
	if len(rl.visitors) != 1 {
		t.Fatalf("visitors = %d; want 1", len(rl.visitors))
	}
}

func TestRateLimiter_Handler429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 1, func(*gin.Context) string { return "same" })

	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(r, http.MethodGet, "/x", nil); w.Code != http.StatusOK {
		t.Fatalf("first request = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/x", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("unexpected body %q (%v)", w.Body.String(), err)
	}
}
