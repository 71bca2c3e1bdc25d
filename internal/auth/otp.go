// Package auth implements the one-time-code challenge flow and the session
// store that turns a verified challenge into an application session.
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// CodeIssuer issues and verifies one-time codes for an identifier. A
// challenge is single-use: after a successful verification or an exhausted
// attempt budget, further attempts fail deterministically.
type CodeIssuer interface {
	// Issue creates a fresh code for the identifier, replacing any pending
	// challenge for it.
	Issue(identifier string) (string, error)

	// Verify checks a submitted code. Returns ErrInvalidCode on mismatch,
	// expiry, or a consumed challenge.
	Verify(identifier, code string) error
}

// TimeboxedIssuer issues random per-identifier codes with a TTL and a
// bounded attempt budget. At most one challenge is pending per identifier.
type TimeboxedIssuer struct {
	mu          sync.Mutex
	pending     map[string]*challenge
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

type challenge struct {
	code     string
	issuedAt time.Time
	attempts int
}

// NewTimeboxedIssuer creates an issuer with the given code TTL and attempt
// budget.
func NewTimeboxedIssuer(ttl time.Duration, maxAttempts int) *TimeboxedIssuer {
	return &TimeboxedIssuer{
		pending:     make(map[string]*challenge),
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Issue creates a fresh six-digit code for the identifier.
func (i *TimeboxedIssuer) Issue(identifier string) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.pending[identifier] = &challenge{code: code, issuedAt: i.now()}
	return code, nil
}

// Verify consumes the pending challenge on success or when the attempt
// budget runs out.
func (i *TimeboxedIssuer) Verify(identifier, code string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	ch, ok := i.pending[identifier]
	if !ok {
		return ErrInvalidCode
	}
	if i.now().Sub(ch.issuedAt) > i.ttl {
		delete(i.pending, identifier)
		return ErrInvalidCode
	}

	if ch.code != code {
		ch.attempts++
		if ch.attempts >= i.maxAttempts {
			delete(i.pending, identifier)
		}
		return ErrInvalidCode
	}

	delete(i.pending, identifier)
	return nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// StaticIssuer always issues the same configured code. It reproduces the
// demo behavior of the reference deployment and is only wired up when
// OTP_STATIC_CODE is set.
type StaticIssuer struct {
	Code string
}

// Issue returns the configured code.
func (s *StaticIssuer) Issue(string) (string, error) {
	return s.Code, nil
}

// Verify compares against the configured code.
func (s *StaticIssuer) Verify(_, code string) error {
	if code != s.Code {
		return ErrInvalidCode
	}
	return nil
}
