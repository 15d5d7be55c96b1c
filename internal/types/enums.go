package types

// AlertKind distinguishes the detector that produced an AlertEvent.
type AlertKind string

const (
	AlertSuddenFluctuation AlertKind = "sudden_fluctuation"
	AlertDailySummary      AlertKind = "daily_summary"
)

// MessageKind identifies the purpose of a dispatched message. It also selects
// the template and the set of placeholders a template may use.
type MessageKind string

const (
	MessageAlert        MessageKind = "alert"
	MessageDailySummary MessageKind = "daily_summary"
	MessageWarning      MessageKind = "warning"
)

// Valid reports whether k is one of the known message kinds.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageAlert, MessageDailySummary, MessageWarning:
		return true
	}
	return false
}

// RequestsUpload reports whether messages of this kind expect a compliance
// photo in response. Warnings are reminders and carry no upload request of
// their own.
func (k MessageKind) RequestsUpload() bool {
	return k == MessageAlert || k == MessageDailySummary
}

// MessageKindForAlert maps an alert event kind to the message kind used to
// notify recipients.
func MessageKindForAlert(kind AlertKind) MessageKind {
	if kind == AlertSuddenFluctuation {
		return MessageAlert
	}
	return MessageDailySummary
}

// Channel is a concrete delivery transport for a single message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// ChannelPreference is the recipient's chosen delivery mode.
type ChannelPreference string

const (
	PreferEmail ChannelPreference = "email"
	PreferSMS   ChannelPreference = "sms"
	PreferBoth  ChannelPreference = "both"
)

// DeliveryStatus tracks the outcome of a message delivery attempt.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySending   DeliveryStatus = "sending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryError     DeliveryStatus = "error"
)

// BaselineType separates heating and cooling baselines.
type BaselineType string

const (
	BaselineHeating BaselineType = "heating"
	BaselineCooling BaselineType = "cooling"
)
