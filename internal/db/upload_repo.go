package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

const uploadColumns = `id, message_id, building_id, uploaded_at, photo_ref, compliance_window_hours, is_compliant`

// UploadRepository persists compliance_uploads. message_id is unique, so a
// message has at most one upload.
type UploadRepository struct {
	db DBTX
}

func NewUploadRepository(db DBTX) *UploadRepository {
	return &UploadRepository{db: db}
}

func scanUpload(row pgx.Row) (*types.ComplianceUpload, error) {
	var (
		u   types.ComplianceUpload
		ref *string
	)
	if err := row.Scan(&u.ID, &u.MessageID, &u.BuildingID, &u.UploadedAt, &ref, &u.WindowHours, &u.IsCompliant); err != nil {
		return nil, err
	}
	u.PhotoRef = derefString(ref)
	return &u, nil
}

// Create inserts the upload with is_compliant=false; compliance is derived
// afterwards. A second upload for the same message is a conflict.
func (r *UploadRepository) Create(ctx context.Context, u *types.ComplianceUpload) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO compliance_uploads (id, message_id, building_id, uploaded_at, photo_ref, compliance_window_hours, is_compliant)
		 VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6, false)
		 RETURNING uploaded_at`,
		u.ID,
		u.MessageID,
		u.BuildingID,
		nilIfZeroTime(u.UploadedAt),
		nilIfEmpty(u.PhotoRef),
		u.WindowHours,
	).Scan(&u.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictUpload, "an upload already exists for this message", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record upload", err)
	}
	u.IsCompliant = false
	return nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id string) (*types.ComplianceUpload, error) {
	u, err := scanUpload(r.db.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM compliance_uploads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUpload, "upload not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load upload", err)
	}
	return u, nil
}

// GetByMessage returns the message's upload, or nil if there is none.
func (r *UploadRepository) GetByMessage(ctx context.Context, messageID string) (*types.ComplianceUpload, error) {
	u, err := scanUpload(r.db.QueryRow(ctx,
		`SELECT `+uploadColumns+` FROM compliance_uploads WHERE message_id = $1
		 ORDER BY uploaded_at ASC LIMIT 1`, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load upload", err)
	}
	return u, nil
}

// SetCompliant stores the derived compliance flag.
func (r *UploadRepository) SetCompliant(ctx context.Context, id string, compliant bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE compliance_uploads SET is_compliant = $2 WHERE id = $1`, id, compliant)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update upload compliance", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundUpload, "upload not found", nil)
	}
	return nil
}
