package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/harentsoaR/hospital-api/internal/middleware"
	"github.com/harentsoaR/hospital-api/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func limitedServer(t *testing.T, proxies []string) *testServer {
	t.Helper()
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:  rate.Every(time.Hour),
		Burst: 1,
	}, zerolog.Nop())
	t.Cleanup(limiter.Stop)
	return newTestServerWith(t, func(o *RouterOptions) {
		o.Limiter = limiter
		o.TrustedProxies = proxies
	})
}

func sendMessageFrom(t *testing.T, ts *testServer, peer, forwardedFor string) int {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"firstName": "Ann",
		"lastName":  "Lee",
		"email":     "ann@example.com",
		"phone":     "5550100",
		"message":   "please call me back tomorrow",
	})
	if err != nil {
		t.Fatal(err)
	}
	req := newJSONRequest(http.MethodPost, "/api/v1/message/send", bytes.NewReader(body))
	req.RemoteAddr = peer + ":40000"
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w, _ := ts.send(t, req)
	return w.Code
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	ts := limitedServer(t, nil)

	if code := sendMessageFrom(t, ts, "203.0.113.7", "198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	for i := 2; i <= 20; i++ {
		xff := fmt.Sprintf("198.51.100.%d", i)
		if code := sendMessageFrom(t, ts, "203.0.113.7", xff); code != http.StatusTooManyRequests {
			t.Fatalf("request with X-Forwarded-For %s: %d, want 429", xff, code)
		}
	}
	if len(ts.msgs.msgs) != 1 {
		t.Errorf("stored %d messages, want 1", len(ts.msgs.msgs))
	}

	if code := sendMessageFrom(t, ts, "203.0.113.8", ""); code != http.StatusOK {
		t.Errorf("other peer limited: %d", code)
	}
}

func TestRateLimitHonoursTrustedProxy(t *testing.T) {
	ts := limitedServer(t, []string{"10.0.0.0/8"})

	for i := 1; i <= 3; i++ {
		xff := fmt.Sprintf("198.51.100.%d", i)
		if code := sendMessageFrom(t, ts, "10.1.2.3", xff); code != http.StatusOK {
			t.Fatalf("client %s behind proxy: %d", xff, code)
		}
	}
	if code := sendMessageFrom(t, ts, "10.1.2.3", "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("repeat client behind proxy: %d, want 429", code)
	}
}

func TestNewRouterRejectsBadProxy(t *testing.T) {
	h := NewHandler(Services{}, CookieOptions{}, zerolog.Nop())
	if _, err := NewRouter(h, RouterOptions{TrustedProxies: []string{"not-an-ip"}}); err == nil {
		t.Fatal("expected error for invalid proxy")
	}
}

func TestSendMessageStoresEncodedMarkupAsText(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.loginAs(t, models.RoleAdmin, "admin@example.com")

	w, _ := ts.do(t, http.MethodPost, "/api/v1/message/send", map[string]string{
		"firstName": "Ann&lt;img src=x onerror=alert(1)&gt;",
		"lastName":  "Lee",
		"email":     "ann@example.com",
		"phone":     "5550100",
		"message":   "&lt;script&gt;alert(document.cookie)&lt;/script&gt; please call",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}

	w, resp := ts.do(t, http.MethodGet, "/api/v1/message/admin", nil, admin)
	if w.Code != http.StatusOK || len(resp.Messages) != 1 {
		t.Fatalf("list: %d %+v", w.Code, resp)
	}
	m := resp.Messages[0]
	if m.FirstName != "Ann" || m.Message != "please call" {
		t.Errorf("stored = %q / %q", m.FirstName, m.Message)
	}
	if strings.ContainsAny(m.FirstName+m.Message, "<>") {
		t.Errorf("markup survived: %q %q", m.FirstName, m.Message)
	}
}
