// Package email abstracts the transactional email providers used to
// deliver class reminders.
package email

import (
	"context"

	"go.uber.org/zap"
)

// Provider is the unified interface for transactional email delivery.
// Implementations: Resend (HTTP API), AWS SES, and a log-only provider
// for development. A send failure is terminal for the current dispatch
// pass; the row stays unsent and the next tick retries it.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// LogProvider logs instead of sending (development mode).
type LogProvider struct {
	logger *zap.Logger
}

func NewLogProvider(logger *zap.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.logger.Info("email logged (development mode)",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_bytes", len(htmlBody)),
	)
	return nil
}
