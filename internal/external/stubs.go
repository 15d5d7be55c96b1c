package external

import (
	"context"
	"fmt"
	"log/slog"

	"tempguard/internal/types"
)

// StubEmailProvider logs instead of sending. It backs EMAIL_PROVIDER=stub
// for local runs.
type StubEmailProvider struct {
	logger *slog.Logger
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: email not sent",
		"to", input.To,
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("stub_email_%s", input.ReferenceID), nil
}

// StubSMSProvider logs instead of sending. It is used when no Twilio
// account is configured.
type StubSMSProvider struct {
	logger *slog.Logger
}

func NewStubSMSProvider(logger *slog.Logger) *StubSMSProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubSMSProvider{logger: logger}
}

func (s *StubSMSProvider) SendSMS(ctx context.Context, input types.SMSInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: sms not sent",
		"to", input.To,
		"length", len(input.Body),
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("stub_sms_%s", input.ReferenceID), nil
}

var (
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ SMSProvider   = (*StubSMSProvider)(nil)
)
