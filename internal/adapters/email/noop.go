package email

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// NoopSender logs sends without delivering them. Used when RESEND_KEY is unset.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a new NoopSender.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

// Send logs the email but does not deliver it.
// POST: Returns a noop result without actual delivery
func (s *NoopSender) Send(_ context.Context, req SendRequest) (SendResult, error) {
	s.logger.Info("noop_email_send", zap.Strings("to", req.To), zap.String("subject", req.Subject))
	now := time.Now()
	return SendResult{
		MessageID: fmt.Sprintf("noop-%d", now.UnixNano()),
		SentAt:    now,
	}, nil
}
