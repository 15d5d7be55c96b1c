package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tempguard/internal/types"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioClientConfig configures a TwilioClient.
type TwilioClientConfig struct {
	AccountSID string
	AuthToken  types.SecretString
	FromNumber string
	BaseURL    string
	UserAgent  string
	Logger     *slog.Logger
}

// TwilioClient implements SMSProvider with the Twilio Messages REST API.
type TwilioClient struct {
	base       *BaseClient
	accountSID string
	authToken  types.SecretString
	from       string
	baseURL    string
	logger     *slog.Logger
}

// NewTwilioClient creates a TwilioClient with two retries.
func NewTwilioClient(httpClient *http.Client, cfg TwilioClientConfig, opts ...BaseClientOption) *TwilioClient {
	opts = append([]BaseClientOption{WithUpstreamCode(types.ErrCodeUpstreamSMSProvider)}, opts...)
	base := NewBaseClient(
		httpClient,
		"twilio",
		RetryPolicy{MaxRetries: 2, MinWait: 500 * time.Millisecond, MaxWait: 5 * time.Second},
		cfg.UserAgent,
		opts...,
	)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioClient{
		base:       base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger,
	}
}

type twilioMessage struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// Twilio rejects sends to numbers that replied STOP with this code.
const twilioUnsubscribedCode = 21610

// SendSMS creates a message and returns its SID.
func (c *TwilioClient) SendSMS(ctx context.Context, input types.SMSInput) (string, error) {
	form := url.Values{}
	form.Set("To", input.To)
	form.Set("From", c.from)
	form.Set("Body", input.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build Twilio request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "Twilio request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "failed to read Twilio response", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var te twilioError
		_ = json.Unmarshal(raw, &te)
		if te.Code == twilioUnsubscribedCode {
			return "", types.NewAppError(types.ErrCodeRecipientBlocked, "recipient unsubscribed from SMS", nil)
		}
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider,
			fmt.Sprintf("Twilio error (%d): %s", resp.StatusCode, te.Message), nil)
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "failed to decode Twilio response", err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider,
			fmt.Sprintf("Twilio reported status %s: %s", msg.Status, msg.ErrorMessage), nil)
	}

	c.logger.DebugContext(ctx, "twilio message created", "sid", msg.SID, "reference_id", input.ReferenceID)
	return msg.SID, nil
}

var _ SMSProvider = (*TwilioClient)(nil)
