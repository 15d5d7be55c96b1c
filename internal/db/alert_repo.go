package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

// AlertEventRepository persists alert_events. Apart from processed the rows
// are immutable.
type AlertEventRepository struct {
	db DBTX
}

func NewAlertEventRepository(db DBTX) *AlertEventRepository {
	return &AlertEventRepository{db: db}
}

// Create inserts the event. The caller assigns ID; TriggeredAt defaults to
// NOW() when zero and is written back.
func (r *AlertEventRepository) Create(ctx context.Context, e *types.AlertEvent) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO alert_events (id, location_id, kind, measurement_data, threshold_snapshot, triggered_at, processed)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()), false)
		 RETURNING triggered_at`,
		e.ID,
		e.LocationID,
		string(e.Kind),
		e.Measurement,
		e.Threshold,
		nilIfZeroTime(e.TriggeredAt),
	).Scan(&e.TriggeredAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create alert event", err)
	}
	e.Processed = false
	return nil
}

// MarkProcessed flips processed to true. Marking an already processed event
// is a no-op.
func (r *AlertEventRepository) MarkProcessed(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE alert_events SET processed = true WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark alert event processed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAlertEvent, "alert event not found", nil)
	}
	return nil
}

func (r *AlertEventRepository) GetByID(ctx context.Context, id string) (*types.AlertEvent, error) {
	var (
		e    types.AlertEvent
		kind string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, location_id, kind, measurement_data, threshold_snapshot, triggered_at, processed
		 FROM alert_events WHERE id = $1`, id,
	).Scan(&e.ID, &e.LocationID, &kind, &e.Measurement, &e.Threshold, &e.TriggeredAt, &e.Processed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAlertEvent, "alert event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load alert event", err)
	}
	e.Kind = types.AlertKind(kind)
	return &e, nil
}
