package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

// BuildingRepository reads buildings.
type BuildingRepository struct {
	db DBTX
}

func NewBuildingRepository(db DBTX) *BuildingRepository {
	return &BuildingRepository{db: db}
}

func (r *BuildingRepository) GetByID(ctx context.Context, id string) (*types.Building, error) {
	var b types.Building
	err := r.db.QueryRow(ctx,
		`SELECT id, city_id, name, is_active, is_paused FROM buildings WHERE id = $1`, id,
	).Scan(&b.ID, &b.CityID, &b.Name, &b.IsActive, &b.IsPaused)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundBuilding, "building not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load building", err)
	}
	return &b, nil
}

// ListByCity returns all active buildings in the city, paused ones included.
func (r *BuildingRepository) ListByCity(ctx context.Context, cityID string) ([]types.Building, error) {
	return r.list(ctx,
		`SELECT id, city_id, name, is_active, is_paused FROM buildings
		 WHERE city_id = $1 AND is_active = true ORDER BY name`, cityID)
}

// ListReceivingByCity returns the buildings that should get new messages:
// active and not paused.
func (r *BuildingRepository) ListReceivingByCity(ctx context.Context, cityID string) ([]types.Building, error) {
	return r.list(ctx,
		`SELECT id, city_id, name, is_active, is_paused FROM buildings
		 WHERE city_id = $1 AND is_active = true AND is_paused = false ORDER BY name`, cityID)
}

func (r *BuildingRepository) list(ctx context.Context, sql string, args ...any) ([]types.Building, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list buildings", err)
	}
	defer rows.Close()

	var out []types.Building
	for rows.Next() {
		var b types.Building
		if err := rows.Scan(&b.ID, &b.CityID, &b.Name, &b.IsActive, &b.IsPaused); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan building", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating buildings", err)
	}
	return out, nil
}

// RecipientRepository reads the people attached to buildings.
type RecipientRepository struct {
	db DBTX
}

func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

const recipientColumns = `id, building_id, name, email, phone, preference, is_active`

func scanRecipient(row pgx.Row) (*types.Recipient, error) {
	var (
		rc           types.Recipient
		email, phone *string
		pref         string
	)
	if err := row.Scan(&rc.ID, &rc.BuildingID, &rc.Name, &email, &phone, &pref, &rc.IsActive); err != nil {
		return nil, err
	}
	rc.Email = derefString(email)
	rc.Phone = derefString(phone)
	rc.Preference = types.ChannelPreference(pref)
	return &rc, nil
}

func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*types.Recipient, error) {
	rc, err := scanRecipient(r.db.QueryRow(ctx,
		`SELECT `+recipientColumns+` FROM recipients WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load recipient", err)
	}
	return rc, nil
}

// ListActiveByBuilding returns the building's active recipients.
func (r *RecipientRepository) ListActiveByBuilding(ctx context.Context, buildingID string) ([]types.Recipient, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+recipientColumns+` FROM recipients
		 WHERE building_id = $1 AND is_active = true ORDER BY name`, buildingID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list recipients", err)
	}
	defer rows.Close()

	var out []types.Recipient
	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan recipient", err)
		}
		out = append(out, *rc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating recipients", err)
	}
	return out, nil
}
