package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"tempguard/internal/types"
)

// SESAPI is the part of the SES v2 client that SESClient calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig configures an SESClient. ConfigSetName is optional.
type SESClientConfig struct {
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient implements EmailProvider with Amazon SES v2. It relies on the
// SDK's own retryer and IAM credentials instead of BaseClient.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

// NewSESClient creates an SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	return NewSESClientWithAPI(sesv2.NewFromConfig(awsCfg), cfg)
}

// NewSESClientWithAPI creates an SESClient around api.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SESClient{api: api, configSetName: cfg.ConfigSetName, logger: logger}
}

func utf8Content(s string) *sestypes.Content {
	return &sestypes.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

// Send delivers a simple (non-templated) email tagged with the internal
// message ID.
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	from := input.From.Address
	if input.From.Name != "" {
		from = fmt.Sprintf("%s <%s>", input.From.Name, input.From.Address)
	}

	body := &sestypes.Body{}
	if input.BodyText != "" {
		body.Text = utf8Content(input.BodyText)
	}
	if input.BodyHTML != "" {
		body.Html = utf8Content(input.BodyHTML)
	}

	params := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &sestypes.Destination{ToAddresses: []string{input.To}},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{Subject: utf8Content(input.Subject), Body: body},
		},
	}
	if s.configSetName != "" {
		params.ConfigurationSetName = aws.String(s.configSetName)
	}
	if input.ReferenceID != "" {
		params.EmailTags = []sestypes.MessageTag{{Name: aws.String("MessageID"), Value: aws.String(input.ReferenceID)}}
	}

	out, err := s.api.SendEmail(ctx, params)
	if err != nil {
		return "", mapSESError(err)
	}
	s.logger.DebugContext(ctx, "ses message accepted", "reference_id", input.ReferenceID)
	return aws.ToString(out.MessageId), nil
}

// mapSESError maps rejected messages to ErrCodeRecipientBlocked and
// throttling to ErrCodeUpstreamRateLimited.
func mapSESError(err error) error {
	var rejected *sestypes.MessageRejected
	var throttled *sestypes.TooManyRequestsException
	var paused *sestypes.SendingPausedException
	switch {
	case errors.As(err, &rejected):
		return types.NewAppError(types.ErrCodeRecipientBlocked, "SES rejected message", err)
	case errors.As(err, &throttled):
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES rate limit exceeded", err)
	case errors.As(err, &paused):
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending paused", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
}

var _ EmailProvider = (*SESClient)(nil)
