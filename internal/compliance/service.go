// Package compliance tracks whether recipients answered a dispatched
// message with an evidence upload inside the compliance window, aggregates
// per-building compliance rates and sends reminders for missing uploads.
package compliance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tempguard/internal/types"
)

const (
	// DefaultWindow is the time allowed between dispatch and upload.
	DefaultWindow = 2 * time.Hour
	// DefaultRateDays is the trailing period used when none is given.
	DefaultRateDays = 30
)

// MessageStore reads dispatched messages.
type MessageStore interface {
	GetByID(ctx context.Context, id string) (*types.DispatchedMessage, error)
	ListWarningCandidates(ctx context.Context, cutoff time.Time) ([]types.DispatchedMessage, error)
	ListRateCandidates(ctx context.Context, buildingID string, since time.Time) ([]types.ComplianceCandidate, error)
}

// UploadStore persists compliance uploads.
type UploadStore interface {
	Create(ctx context.Context, u *types.ComplianceUpload) error
	GetByID(ctx context.Context, id string) (*types.ComplianceUpload, error)
	GetByMessage(ctx context.Context, messageID string) (*types.ComplianceUpload, error)
	SetCompliant(ctx context.Context, id string, compliant bool) error
}

type RecipientReader interface {
	GetByID(ctx context.Context, id string) (*types.Recipient, error)
}

type BuildingLister interface {
	ListByCity(ctx context.Context, cityID string) ([]types.Building, error)
}

// WarningQueuer renders and queues a reminder for a message that is still
// waiting for its upload.
type WarningQueuer interface {
	QueueWarning(ctx context.Context, original *types.DispatchedMessage, recipient *types.Recipient, hoursAgo float64) ([]string, error)
}

// PendingSender delivers queued messages.
type PendingSender interface {
	SendPending(ctx context.Context) (*types.DispatchSummary, error)
}

// Config wires a Service. Warnings and Sender are only needed by
// CheckAndSendWarnings; Buildings only by FleetComplianceRates.
type Config struct {
	Messages    MessageStore
	Uploads     UploadStore
	Recipients  RecipientReader
	Buildings   BuildingLister
	Warnings    WarningQueuer
	Sender      PendingSender
	Window      time.Duration
	Concurrency int
	Logger      *slog.Logger
	Clock       types.Clock
	NewID       func() string
}

type Service struct {
	messages    MessageStore
	uploads     UploadStore
	recipients  RecipientReader
	buildings   BuildingLister
	warnings    WarningQueuer
	sender      PendingSender
	window      time.Duration
	concurrency int
	logger      *slog.Logger
	clock       types.Clock
	newID       func() string
}

func NewService(cfg Config) *Service {
	s := &Service{
		messages:    cfg.Messages,
		uploads:     cfg.Uploads,
		recipients:  cfg.Recipients,
		buildings:   cfg.Buildings,
		warnings:    cfg.Warnings,
		sender:      cfg.Sender,
		window:      cfg.Window,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		newID:       cfg.NewID,
	}
	if s.window <= 0 {
		s.window = DefaultWindow
	}
	if s.concurrency <= 0 {
		s.concurrency = 8
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
	return s
}

// Window returns the configured compliance window.
func (s *Service) Window() time.Duration { return s.window }
