// Package assistant bridges chat turns to the generative AI backend. The
// gateway is stateless: each call carries only the most recent user turn
// plus an optional image, trading conversational memory for cost.
package assistant

import (
	"context"
	"log/slog"
	"time"

	"github.com/miktsoan/core/internal/config"
	"github.com/miktsoan/core/internal/domain"
)

// ApologyText is returned when a configured backend fails at call time.
// Call failures are never surfaced to the caller as errors.
const ApologyText = "I'm having trouble connecting to the brain right now. Please try again later."

// systemInstruction constrains the assistant persona. It is a configuration
// constant, never runtime-supplied.
const systemInstruction = `You are "Miktsoan AI", a helpful home service expert assistant.
Your goal is to help users diagnose home maintenance issues and recommend professionals.

Rules:
1. Be concise, friendly, and professional.
2. If the user uploads an image, analyze it for damage (water leak, burnt outlet, etc.) and estimate severity (Low/Medium/High).
3. Suggest a category of professional (Plumber, Electrician, etc.) based on the problem.
4. Provide a rough price range estimate in NIS (New Israeli Shekels) if possible based on standard market rates.
5. Ask clarifying questions if the problem is unclear.`

const maxOutputTokens = 500

// Turn is one role-tagged fragment of the conversation so far.
type Turn struct {
	Role domain.SenderRole
	Text string
}

// Attachment is a single inline image sent with a turn.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// backend performs the actual model call.
type backend interface {
	generate(ctx context.Context, prompt string, att *Attachment) (string, error)
}

// Gateway is the stateless AI bridge. With no backend configured it runs in
// fallback mode and never fails.
type Gateway struct {
	backend       backend
	callTimeout   time.Duration
	fallbackText  string
	fallbackDelay time.Duration
}

// New creates a gateway from configuration. An empty API key selects
// fallback mode rather than an error.
func New(ctx context.Context, cfg config.AssistantConfig) (*Gateway, error) {
	g := &Gateway{
		callTimeout:   cfg.CallTimeout,
		fallbackText:  cfg.FallbackText,
		fallbackDelay: cfg.FallbackDelay,
	}

	if cfg.APIKey == "" {
		slog.Info("No AI API key configured, assistant runs in fallback mode")
		return g, nil
	}

	b, err := newGeminiBackend(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	g.backend = b
	return g, nil
}

// Converse produces a reply for the conversation. It never returns an error:
// fallback mode yields the fixed demo text, and call-time failures yield the
// apology text.
func (g *Gateway) Converse(ctx context.Context, turns []Turn, att *Attachment) string {
	if g.backend == nil {
		// Simulated latency so the UI behaves like the real path.
		select {
		case <-time.After(g.fallbackDelay):
		case <-ctx.Done():
		}
		return g.fallbackText
	}

	prompt := lastUserText(turns)

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	reply, err := g.backend.generate(callCtx, prompt, att)
	if err != nil {
		slog.Warn("AI backend call failed", "error", err)
		return ApologyText
	}
	if reply == "" {
		slog.Warn("AI backend returned empty response")
		return ApologyText
	}
	return reply
}

// lastUserText returns the text of the most recent user turn. Earlier turns
// are intentionally not replayed.
func lastUserText(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.SenderUser {
			return turns[i].Text
		}
	}
	if len(turns) > 0 {
		return turns[len(turns)-1].Text
	}
	return ""
}
