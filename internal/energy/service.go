package energy

import (
	"context"
	"fmt"
	"log/slog"

	"tempguard/internal/types"
)

// HistoryLimit is the default number of months returned by history reads.
const HistoryLimit = 36

// Store is the persistence the energy service needs. It is satisfied by
// db.EnergyRepository.
type Store interface {
	UpsertUtilityBill(ctx context.Context, b *types.UtilityBill) error
	GetUtilityBill(ctx context.Context, buildingID string, month, year int) (*types.UtilityBill, error)
	ListUtilityHistory(ctx context.Context, buildingID string, limit int) ([]types.UtilityBill, error)
	ListBillsForMonth(ctx context.Context, buildingID string, month, minKey int) ([]types.UtilityBill, error)

	UpsertDegreeDays(ctx context.Context, d *types.DegreeDayRecord) error
	GetDegreeDays(ctx context.Context, cityID string, month, year int) (*types.DegreeDayRecord, error)
	ListDegreeDayHistory(ctx context.Context, cityID string, limit int) ([]types.DegreeDayRecord, error)
	ListDegreeDaysForMonth(ctx context.Context, cityID string, month int) ([]types.DegreeDayRecord, error)

	UpsertBaseline(ctx context.Context, b *types.EnergyBaseline) error
	GetBaseline(ctx context.Context, buildingID string, month int, typ types.BaselineType) (*types.EnergyBaseline, error)

	UpsertReport(ctx context.Context, rep *types.EnergyReport) error
}

// BuildingReader resolves a building's city.
type BuildingReader interface {
	GetByID(ctx context.Context, id string) (*types.Building, error)
}

// Config wires a Service.
type Config struct {
	Store     Store
	Buildings BuildingReader
	Logger    *slog.Logger
	Clock     types.Clock
	// Concurrency bounds RecomputeBuilding. Zero means 4.
	Concurrency int
}

type Service struct {
	store       Store
	buildings   BuildingReader
	logger      *slog.Logger
	clock       types.Clock
	concurrency int
}

func NewService(cfg Config) *Service {
	s := &Service{
		store:       cfg.Store,
		buildings:   cfg.Buildings,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		concurrency: cfg.Concurrency,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	return s
}

// RecordUtilityBill validates and upserts a monthly bill.
func (s *Service) RecordUtilityBill(ctx context.Context, bill *types.UtilityBill) error {
	if err := validateMonth(bill.Month); err != nil {
		return err
	}
	if err := validateYear(bill.Year); err != nil {
		return err
	}
	if bill.TotalKBTU < 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidValue, "total_kbtu must not be negative", nil)
	}
	if _, err := s.buildings.GetByID(ctx, bill.BuildingID); err != nil {
		return err
	}
	return s.store.UpsertUtilityBill(ctx, bill)
}

// RecordDegreeDays validates and upserts a city's degree days for a month.
func (s *Service) RecordDegreeDays(ctx context.Context, dd *types.DegreeDayRecord) error {
	if err := validateMonth(dd.Month); err != nil {
		return err
	}
	if err := validateYear(dd.Year); err != nil {
		return err
	}
	if dd.HeatingDegreeDays < 0 || dd.CoolingDegreeDays < 0 {
		return types.NewAppError(types.ErrCodeValidationInvalidValue, "degree days must not be negative", nil)
	}
	return s.store.UpsertDegreeDays(ctx, dd)
}

// UtilityHistory returns the building's most recent bills, newest first.
func (s *Service) UtilityHistory(ctx context.Context, buildingID string, limit int) ([]types.UtilityBill, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return s.store.ListUtilityHistory(ctx, buildingID, limit)
}

// DegreeDayHistory returns the city's most recent degree-day records.
func (s *Service) DegreeDayHistory(ctx context.Context, cityID string, limit int) ([]types.DegreeDayRecord, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return s.store.ListDegreeDayHistory(ctx, cityID, limit)
}

func validateYear(year int) error {
	if year < 1900 || year > 2200 {
		return types.NewAppError(types.ErrCodeValidationInvalidYear,
			fmt.Sprintf("year %d is out of range", year), nil)
	}
	return nil
}
