package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miktsoan/core/internal/domain"
	"github.com/miktsoan/core/internal/state"
	"github.com/miktsoan/core/internal/store"
)

// Recoverable challenge flow errors, shown inline to the user.
var (
	// ErrInvalidPhone is returned when the identifier is too short to be a
	// phone number.
	ErrInvalidPhone = errors.New("phone number must be at least 9 characters")

	// ErrRateLimited is returned when challenge requests for an identifier
	// are throttled.
	ErrRateLimited = errors.New("too many attempts, try again later")

	// ErrInvalidCode is returned when the submitted code does not match the
	// pending challenge.
	ErrInvalidCode = errors.New("invalid code")
)

const minPhoneLength = 9

// Service runs the credential challenge flow. Neither operation mutates
// session state on failure; both are client-retriable.
type Service struct {
	issuer   CodeIssuer
	sender   Sender
	limiter  RateLimiter
	repo     store.Repository
	appState *state.Container
	tokens   *TokenIssuer
}

// NewService wires the challenge service.
func NewService(issuer CodeIssuer, sender Sender, limiter RateLimiter, repo store.Repository, appState *state.Container, tokens *TokenIssuer) *Service {
	return &Service{
		issuer:   issuer,
		sender:   sender,
		limiter:  limiter,
		repo:     repo,
		appState: appState,
		tokens:   tokens,
	}
}

// RequestChallenge validates the phone number, applies the rate-limit
// policy, and dispatches a one-time code out-of-band.
func (s *Service) RequestChallenge(ctx context.Context, phone string) error {
	s.appState.AppendHistory(ctx, domain.ActionLogin, map[string]any{
		"stage": "request",
		"phone": phone,
	})

	if len(phone) < minPhoneLength {
		return ErrInvalidPhone
	}
	if !s.limiter.Allow(phone) {
		return ErrRateLimited
	}

	code, err := s.issuer.Issue(phone)
	if err != nil {
		return fmt.Errorf("issue challenge: %w", err)
	}

	// Dispatch is fire-and-forget; a provider hiccup must not fail the
	// request, the user can ask for a resend.
	if err := s.sender.Send(ctx, phone, code); err != nil {
		slog.Warn("Failed to dispatch one-time code", "error", err)
	}

	return nil
}

// VerifyChallenge checks the submitted code and, on success, establishes the
// session: the profile is loaded or created in the document store, installed
// into the state container, and a signed session token is issued.
func (s *Service) VerifyChallenge(ctx context.Context, phone, code string, role domain.Role, language domain.Language) (*domain.UserProfile, string, error) {
	if err := s.issuer.Verify(phone, code); err != nil {
		s.appState.AppendHistory(ctx, domain.ActionLogin, map[string]any{
			"stage": "verify_fail",
			"phone": phone,
		})
		return nil, "", ErrInvalidCode
	}

	user, err := s.repo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, "", fmt.Errorf("load profile: %w", err)
	}
	if user == nil {
		user = &domain.UserProfile{
			ID:        DeriveUserID(phone),
			Name:      "New User",
			Phone:     phone,
			Avatar:    "https://i.pravatar.cc/150?u=" + phone,
			Role:      role,
			Language:  language,
			CreatedAt: time.Now(),
		}
	} else {
		user.Role = role
		user.Language = language
	}

	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return nil, "", fmt.Errorf("store profile: %w", err)
	}

	s.appState.SetSession(ctx, user)
	s.appState.SetLanguage(ctx, language)
	s.appState.AppendHistory(ctx, domain.ActionLogin, map[string]any{
		"stage":  "success",
		"userId": user.ID,
	})

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	return user, token, nil
}

// DeriveUserID derives the stable user ID from a phone number by stripping
// every non-digit character.
func DeriveUserID(phone string) string {
	var b strings.Builder
	b.WriteString("u_")
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
