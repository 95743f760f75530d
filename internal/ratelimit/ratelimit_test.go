package ratelimit

import (
	"testing"
	"time"
)

func testLimiter(t *testing.T) (*WindowLimiter, *time.Time) {
	t.Helper()
	l, err := NewWindowLimiter(100)
	if err != nil {
		t.Fatalf("NewWindowLimiter: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheck_AllowsUpToMax(t *testing.T) {
	l, _ := testLimiter(t)
	cfg := Config{Window: time.Minute, Max: 3}

	for i := 0; i < 3; i++ {
		res := l.Check("chat:abc", cfg)
		if !res.Allowed {
			t.Fatalf("request %d: Allowed = false, want true", i+1)
		}
		if res.Remaining != 3-i-1 {
			t.Errorf("request %d: Remaining = %d, want %d", i+1, res.Remaining, 3-i-1)
		}
	}

	res := l.Check("chat:abc", cfg)
	if res.Allowed {
		t.Fatal("4th request: Allowed = true, want false")
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestCheck_WindowResets(t *testing.T) {
	l, now := testLimiter(t)
	cfg := Config{Window: time.Minute, Max: 1}

	if res := l.Check("chat:abc", cfg); !res.Allowed {
		t.Fatal("first request denied")
	}
	if res := l.Check("chat:abc", cfg); res.Allowed {
		t.Fatal("second request in window allowed")
	}

	*now = now.Add(61 * time.Second)
	if res := l.Check("chat:abc", cfg); !res.Allowed {
		t.Fatal("request after window reset denied")
	}
}

func TestCheck_IdentifiersIndependent(t *testing.T) {
	l, _ := testLimiter(t)
	cfg := Config{Window: time.Minute, Max: 1}

	l.Check("chat:aaa", cfg)
	if res := l.Check("chat:bbb", cfg); !res.Allowed {
		t.Error("independent identifier was denied")
	}
}

func TestIdentifier(t *testing.T) {
	got := Identifier("chat", "sk_live_0123456789abcdef")
	want := "chat:456789abcdef"
	if got != want {
		t.Errorf("Identifier = %q, want %q", got, want)
	}

	short := Identifier("mgmt", "abc")
	if short != "mgmt:abc" {
		t.Errorf("Identifier(short) = %q, want mgmt:abc", short)
	}
}
