package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTimeboxedIssuerHappyPath(t *testing.T) {
	t.Parallel()

	issuer := NewTimeboxedIssuer(5*time.Minute, 3)

	code, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if err := issuer.Verify("0501234567", code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestTimeboxedIssuerSingleUse(t *testing.T) {
	t.Parallel()

	issuer := NewTimeboxedIssuer(5*time.Minute, 3)

	code, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := issuer.Verify("0501234567", code); err != nil {
		t.Fatalf("first Verify failed: %v", err)
	}

	// The challenge is consumed; the same code must fail deterministically.
	if err := issuer.Verify("0501234567", code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode on reuse, got %v", err)
	}
}

func TestTimeboxedIssuerAttemptBudget(t *testing.T) {
	t.Parallel()

	issuer := NewTimeboxedIssuer(5*time.Minute, 3)

	code, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := issuer.Verify("0501234567", "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i, err)
		}
	}

	// Budget exhausted: even the right code fails now.
	if err := issuer.Verify("0501234567", code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode after exhausted budget, got %v", err)
	}
}

func TestTimeboxedIssuerExpiry(t *testing.T) {
	t.Parallel()

	issuer := NewTimeboxedIssuer(5*time.Minute, 3)
	now := time.Unix(1700000000, 0)
	issuer.now = func() time.Time { return now }

	code, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	now = now.Add(6 * time.Minute)
	if err := issuer.Verify("0501234567", code); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode after expiry, got %v", err)
	}
}

func TestTimeboxedIssuerReissueReplacesPending(t *testing.T) {
	t.Parallel()

	issuer := NewTimeboxedIssuer(5*time.Minute, 3)

	first, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	second, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("reissue failed: %v", err)
	}

	if first != second {
		if err := issuer.Verify("0501234567", first); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("expected stale code to fail, got %v", err)
		}
	}
	if err := issuer.Verify("0501234567", second); err != nil {
		t.Fatalf("expected fresh code to verify, got %v", err)
	}
}

func TestStaticIssuer(t *testing.T) {
	t.Parallel()

	issuer := &StaticIssuer{Code: "123456"}

	code, err := issuer.Issue("0501234567")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if code != "123456" {
		t.Fatalf("expected configured code, got %q", code)
	}

	if err := issuer.Verify("0501234567", "123456"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := issuer.Verify("0501234567", "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestWindowLimiter(t *testing.T) {
	t.Parallel()

	limiter := NewWindowLimiter(10*time.Minute, 3)
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !limiter.Allow("0501234567") {
			t.Fatalf("request %d: expected allow", i)
		}
	}
	if limiter.Allow("0501234567") {
		t.Fatal("expected throttle after burst")
	}

	// Other identifiers are unaffected.
	if !limiter.Allow("0529999999") {
		t.Fatal("expected other identifier to be allowed")
	}

	// The window slides.
	now = now.Add(11 * time.Minute)
	if !limiter.Allow("0501234567") {
		t.Fatal("expected allow after window elapsed")
	}
}
