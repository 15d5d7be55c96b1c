package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

const templateColumns = `id, city_id, template_type, subject, content, is_active, created_at, updated_at`

// TemplateRepository persists per-city message template overrides. At most
// one template per (city, kind) is active; deleted templates stay as
// inactive rows.
type TemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func scanTemplate(row pgx.Row) (*types.MessageTemplate, error) {
	var (
		t       types.MessageTemplate
		kind    string
		subject *string
	)
	if err := row.Scan(&t.ID, &t.CityID, &kind, &subject, &t.Content, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Kind = types.MessageKind(kind)
	t.Subject = derefString(subject)
	return &t, nil
}

// GetActive returns the active template for the city and kind, or nil.
func (r *TemplateRepository) GetActive(ctx context.Context, cityID string, kind types.MessageKind) (*types.MessageTemplate, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM message_templates
		 WHERE city_id = $1 AND template_type = $2 AND is_active = true
		 LIMIT 1`,
		cityID, string(kind)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load message template", err)
	}
	return t, nil
}

// Save updates the active template for (city, kind) in place, or inserts a
// new active one when there is none. The stored row is written back into t.
func (r *TemplateRepository) Save(ctx context.Context, t *types.MessageTemplate) error {
	stored, err := scanTemplate(r.db.QueryRow(ctx,
		`UPDATE message_templates
		 SET content = $3, subject = $4, updated_at = NOW()
		 WHERE city_id = $1 AND template_type = $2 AND is_active = true
		 RETURNING `+templateColumns,
		t.CityID, string(t.Kind), t.Content, nilIfEmpty(t.Subject)))
	if err == nil {
		*t = *stored
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update message template", err)
	}

	stored, err = scanTemplate(r.db.QueryRow(ctx,
		`INSERT INTO message_templates (id, city_id, template_type, subject, content, is_active)
		 VALUES ($1, $2, $3, $4, $5, true)
		 RETURNING `+templateColumns,
		t.ID, t.CityID, string(t.Kind), nilIfEmpty(t.Subject), t.Content))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create message template", err)
	}
	*t = *stored
	return nil
}

// ListByCity returns all of a city's templates, inactive ones included.
func (r *TemplateRepository) ListByCity(ctx context.Context, cityID string) ([]types.MessageTemplate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+templateColumns+` FROM message_templates
		 WHERE city_id = $1
		 ORDER BY template_type, updated_at DESC`, cityID)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list message templates", err)
	}
	defer rows.Close()

	var out []types.MessageTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message template", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message templates", err)
	}
	return out, nil
}

// Deactivate soft-deletes a template.
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE message_templates SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to deactivate message template", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundTemplate, "message template not found", nil)
	}
	return nil
}
