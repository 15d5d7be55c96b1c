package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tempguard/internal/types"
)

const (
	// PendingLookback bounds how old a queued message may be and still be
	// sent by SendPending.
	PendingLookback = 24 * time.Hour
	// PendingBatchSize is the most messages one SendPending pass handles.
	PendingBatchSize = 100
	// ClaimLease is how long a claimed message may stay in sending before
	// it is treated as abandoned and claimed again. It exceeds the longest
	// Lambda timeout.
	ClaimLease = 15 * time.Minute
)

// MessageStore persists dispatched messages.
type MessageStore interface {
	Create(ctx context.Context, m *types.DispatchedMessage) error
	ListPending(ctx context.Context, since, staleBefore time.Time, limit int) ([]types.OutboundMessage, error)
	GetOutbound(ctx context.Context, id string) (*types.OutboundMessage, error)
	Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	MarkResult(ctx context.Context, id string, delivered bool, status types.DeliveryStatus) error
	MarkError(ctx context.Context, id string) error
}

// TemplateStore persists per-city template overrides.
type TemplateStore interface {
	GetActive(ctx context.Context, cityID string, kind types.MessageKind) (*types.MessageTemplate, error)
	Save(ctx context.Context, t *types.MessageTemplate) error
	ListByCity(ctx context.Context, cityID string) ([]types.MessageTemplate, error)
	Deactivate(ctx context.Context, id string) error
}

type LocationReader interface {
	GetByID(ctx context.Context, id string) (*types.LocationConfig, error)
}

type BuildingReader interface {
	GetByID(ctx context.Context, id string) (*types.Building, error)
	ListReceivingByCity(ctx context.Context, cityID string) ([]types.Building, error)
}

type RecipientLister interface {
	ListActiveByBuilding(ctx context.Context, buildingID string) ([]types.Recipient, error)
}

type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (string, error)
}

type SMSProvider interface {
	SendSMS(ctx context.Context, input types.SMSInput) (string, error)
}

// DispatchPublisher hands freshly queued message IDs to the dispatch
// worker.
type DispatchPublisher interface {
	PublishDispatch(ctx context.Context, req types.DispatchRequest) error
}

// DeliveryMetrics records the outcome of each delivery attempt.
type DeliveryMetrics interface {
	RecordDelivery(ctx context.Context, channel types.Channel, status types.DeliveryStatus, latency time.Duration)
}

// Config wires a Service. Publisher and Metrics are optional.
type Config struct {
	Messages   MessageStore
	Templates  TemplateStore
	Locations  LocationReader
	Buildings  BuildingReader
	Recipients RecipientLister
	Email      EmailProvider
	SMS        SMSProvider
	Renderer   *EmailRenderer
	Publisher  DispatchPublisher
	Metrics    DeliveryMetrics
	AppURL     string
	Logger     *slog.Logger
	Clock      types.Clock
	NewID      func() string
}

type Service struct {
	messages   MessageStore
	templates  TemplateStore
	locations  LocationReader
	buildings  BuildingReader
	recipients RecipientLister
	email      EmailProvider
	sms        SMSProvider
	renderer   *EmailRenderer
	publisher  DispatchPublisher
	metrics    DeliveryMetrics
	appURL     string
	logger     *slog.Logger
	clock      types.Clock
	newID      func() string
}

func NewService(cfg Config) (*Service, error) {
	s := &Service{
		messages:   cfg.Messages,
		templates:  cfg.Templates,
		locations:  cfg.Locations,
		buildings:  cfg.Buildings,
		recipients: cfg.Recipients,
		email:      cfg.Email,
		sms:        cfg.SMS,
		renderer:   cfg.Renderer,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		appURL:     cfg.AppURL,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		newID:      cfg.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.renderer == nil {
		r, err := NewEmailRenderer(types.SenderIdentity{}, s.appURL)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	return s, nil
}
