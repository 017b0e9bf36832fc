package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newLimitedServer(p Policy) *echo.Echo {
	e := echo.New()
	e.GET("/limited", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, Middleware(p))
	return e
}

func hit(e *echo.Echo, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestMiddleware_EnforcesLimit(t *testing.T) {
	e := newLimitedServer(Policy{Name: "test", Window: time.Minute, Limit: 3, Key: KeyIP("test")})

	for i := 0; i < 3; i++ {
		if code := hit(e, "10.0.0.1"); code != http.StatusOK {
			t.Fatalf("request %d: code %d", i+1, code)
		}
	}
	if code := hit(e, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("4th request: code %d, want 429", code)
	}
}

func TestMiddleware_KeysIsolatedByIP(t *testing.T) {
	e := newLimitedServer(Policy{Name: "test", Window: time.Minute, Limit: 1, Key: KeyIP("test")})

	if code := hit(e, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("first ip: %d", code)
	}
	if code := hit(e, "10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("first ip repeat: %d", code)
	}
	if code := hit(e, "10.0.0.2"); code != http.StatusOK {
		t.Fatalf("second ip: %d", code)
	}
}

func TestMiddleware_DefaultsApplied(t *testing.T) {
	// Zero policy values fall back to sane defaults instead of blocking
	// everything or nothing.
	e := newLimitedServer(Policy{Name: "test"})
	if code := hit(e, "10.0.0.1"); code != http.StatusOK {
		t.Fatalf("code %d", code)
	}
}

func TestKeyActorOrIP(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/x?actor_id=abc", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if got := KeyActorOrIP("p")(c); got != "p:actor:abc" {
		t.Errorf("actor key = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.5")
	c = e.NewContext(req, httptest.NewRecorder())
	if got := KeyActorOrIP("p")(c); got != "p:ip:203.0.113.5" {
		t.Errorf("ip key = %q", got)
	}
}
