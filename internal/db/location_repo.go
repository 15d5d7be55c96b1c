package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

const locationColumns = `id, name, nws_office, nws_grid_x, nws_grid_y,
	alert_temp_delta, alert_window_hours, is_active, created_at, updated_at`

// LocationRepository reads monitored cities.
type LocationRepository struct {
	db DBTX
}

func NewLocationRepository(db DBTX) *LocationRepository {
	return &LocationRepository{db: db}
}

func scanLocation(row pgx.Row) (*types.LocationConfig, error) {
	var l types.LocationConfig
	err := row.Scan(
		&l.ID,
		&l.Name,
		&l.NWSOffice,
		&l.GridX,
		&l.GridY,
		&l.AlertTempDelta,
		&l.AlertWindowHours,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetByID returns the location or nil when it does not exist. Inactive
// locations are returned; callers decide what inactive means for them.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*types.LocationConfig, error) {
	l, err := scanLocation(r.db.QueryRow(ctx,
		`SELECT `+locationColumns+` FROM cities WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load city", err)
	}
	return l, nil
}

// ListActive returns every active city ordered by name.
func (r *LocationRepository) ListActive(ctx context.Context) ([]*types.LocationConfig, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+locationColumns+` FROM cities WHERE is_active = true ORDER BY name`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active cities", err)
	}
	defer rows.Close()

	var out []*types.LocationConfig
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan city", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating cities", err)
	}
	return out, nil
}
