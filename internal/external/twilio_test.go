package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempguard/internal/types"
)

func newTestTwilio(url string) *TwilioClient {
	return NewTwilioClient(nil, TwilioClientConfig{
		AccountSID: "AC123",
		AuthToken:  "secret-token",
		FromNumber: "+15550000000",
		BaseURL:    url,
	}, WithSleepFunc(noopSleep))
}

func TestTwilioSendSMS_Success(t *testing.T) {
	var (
		path       string
		user, pass string
		to, body   string
		from       string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, _ = r.BasicAuth()
		_ = r.ParseForm()
		to, from, body = r.PostForm.Get("To"), r.PostForm.Get("From"), r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	sid, err := newTestTwilio(srv.URL).SendSMS(context.Background(), types.SMSInput{
		To: "+15551234567", Body: "Temperature alert", ReferenceID: "msg-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "SM1", sid)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", path)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "secret-token", pass)
	assert.Equal(t, "+15551234567", to)
	assert.Equal(t, "+15550000000", from)
	assert.Equal(t, "Temperature alert", body)
}

func TestTwilioSendSMS_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   types.ErrorCode
	}{
		{"unsubscribed", http.StatusBadRequest, `{"code":21610,"message":"Attempt to send to unsubscribed recipient"}`, types.ErrCodeRecipientBlocked},
		{"invalid number", http.StatusBadRequest, `{"code":21211,"message":"Invalid 'To' Phone Number"}`, types.ErrCodeUpstreamSMSProvider},
		{"failed status", http.StatusCreated, `{"sid":"SM2","status":"failed","error_message":"carrier violation"}`, types.ErrCodeUpstreamSMSProvider},
		{"bad json", http.StatusCreated, `not json`, types.ErrCodeUpstreamSMSProvider},
		{"server error", http.StatusServiceUnavailable, ``, types.ErrCodeUpstreamSMSProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestTwilio(srv.URL).SendSMS(context.Background(), types.SMSInput{To: "+1555", Body: "x"})
			requireAppError(t, err, tt.want)
		})
	}
}

func TestStubProviders(t *testing.T) {
	id, err := NewStubEmailProvider(nil).Send(context.Background(), testEmail())
	require.NoError(t, err)
	assert.Equal(t, "stub_email_msg-1", id)

	id, err = NewStubSMSProvider(nil).SendSMS(context.Background(), types.SMSInput{To: "+1555", ReferenceID: "msg-2"})
	require.NoError(t, err)
	assert.Equal(t, "stub_sms_msg-2", id)
}
