package auth

import (
	"context"
	"log/slog"
)

// Sender dispatches a one-time code out-of-band (SMS or equivalent). The
// core treats dispatch as fire-and-forget.
type Sender interface {
	Send(ctx context.Context, identifier, code string) error
}

// LogSender logs the dispatch instead of sending it. It stands in for a real
// SMS provider in development.
type LogSender struct{}

// Send logs the code that would have been dispatched.
func (LogSender) Send(_ context.Context, identifier, code string) error {
	slog.Info("Dispatching one-time code", "identifier", identifier, "code", code)
	return nil
}
