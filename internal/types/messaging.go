package types

import "time"

// SenderIdentity is the From identity on outbound email.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput is a fully rendered email handed to an EmailProvider.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyText    string
	BodyHTML    string
	ReferenceID string // internal message ID, for provider-side correlation
}

// SMSInput is a rendered text message handed to an SMSProvider.
type SMSInput struct {
	To          string
	Body        string
	ReferenceID string
}

// DispatchRequest is the SQS payload that asks the dispatch worker to
// deliver already-queued messages.
type DispatchRequest struct {
	MessageIDs   []string  `json:"message_ids"`
	AlertEventID string    `json:"alert_event_id,omitempty"`
	TraceID      string    `json:"trace_id"`
	QueuedAt     time.Time `json:"queued_at"`
}

// DispatchSummary reports the outcome of a send-pending pass.
type DispatchSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// OutboundMessage is a queued message joined with the addresses of its
// recipient, as needed by the dispatcher.
type OutboundMessage struct {
	Message DispatchedMessage
	Email   string
	Phone   string
}

// ComplianceCandidate pairs a message with the time of its first upload,
// nil when nothing was uploaded.
type ComplianceCandidate struct {
	Message    DispatchedMessage
	UploadedAt *time.Time
}
