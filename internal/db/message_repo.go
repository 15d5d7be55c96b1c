package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"tempguard/internal/types"
)

const messageColumns = `m.id, m.alert_event_id, m.building_id, m.recipient_id, m.kind,
	m.channel, m.content, m.sent_at, m.delivered, m.delivery_status, m.created_at`

// MessageRepository persists dispatched messages. A message row is written
// once when queued and once more with its delivery outcome.
type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// messageDest returns scan targets for messageColumns and a finish func that
// copies the nullable and enum columns into m.
func messageDest(m *types.DispatchedMessage) ([]any, func()) {
	var (
		alertID          *string
		kind, ch, status string
	)
	dest := []any{
		&m.ID, &alertID, &m.BuildingID, &m.RecipientID, &kind,
		&ch, &m.Content, &m.SentAt, &m.Delivered, &status, &m.CreatedAt,
	}
	return dest, func() {
		m.AlertEventID = derefString(alertID)
		m.Kind = types.MessageKind(kind)
		m.Channel = types.Channel(ch)
		m.DeliveryStatus = types.DeliveryStatus(status)
	}
}

// Create queues a message. The caller assigns ID.
func (r *MessageRepository) Create(ctx context.Context, m *types.DispatchedMessage) error {
	if m.DeliveryStatus == "" {
		m.DeliveryStatus = types.DeliveryPending
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO messages (id, alert_event_id, building_id, recipient_id, kind, channel, content, delivered, delivery_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		 RETURNING created_at`,
		m.ID,
		nilIfEmpty(m.AlertEventID),
		m.BuildingID,
		m.RecipientID,
		string(m.Kind),
		string(m.Channel),
		m.Content,
		string(m.DeliveryStatus),
	).Scan(&m.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to queue message", err)
	}
	return nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*types.DispatchedMessage, error) {
	var m types.DispatchedMessage
	dest, finish := messageDest(&m)
	err := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages m WHERE m.id = $1`, id,
	).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load message", err)
	}
	finish()
	return &m, nil
}

const outboundSelect = `SELECT ` + messageColumns + `, rc.email, rc.phone
	FROM messages m
	JOIN recipients rc ON rc.id = m.recipient_id`

func scanOutbound(row pgx.Row) (*types.OutboundMessage, error) {
	var (
		out          types.OutboundMessage
		email, phone *string
	)
	dest, finish := messageDest(&out.Message)
	if err := row.Scan(append(dest, &email, &phone)...); err != nil {
		return nil, err
	}
	finish()
	out.Email = derefString(email)
	out.Phone = derefString(phone)
	return &out, nil
}

// ListPending returns undelivered messages created at or after since, oldest
// first. Messages already attempted carry a terminal status and are
// skipped. A message left in sending with a claim older than staleBefore
// was abandoned mid-attempt and is listed again.
func (r *MessageRepository) ListPending(ctx context.Context, since, staleBefore time.Time, limit int) ([]types.OutboundMessage, error) {
	rows, err := r.db.Query(ctx,
		outboundSelect+`
		 WHERE m.delivered = false AND m.created_at >= $1
		   AND (m.delivery_status = 'pending'
		        OR (m.delivery_status = 'sending' AND m.claimed_at < $2))
		 ORDER BY m.created_at ASC
		 LIMIT $3`,
		since, staleBefore, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query pending messages", err)
	}
	defer rows.Close()

	var out []types.OutboundMessage
	for rows.Next() {
		o, err := scanOutbound(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan pending message", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating pending messages", err)
	}
	return out, nil
}

// GetOutbound loads one message with its recipient addresses.
func (r *MessageRepository) GetOutbound(ctx context.Context, id string) (*types.OutboundMessage, error) {
	o, err := scanOutbound(r.db.QueryRow(ctx, outboundSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load message", err)
	}
	return o, nil
}

// Claim moves a message to sending and stamps claimed_at. A pending message
// can be claimed, and so can one whose earlier claim is older than
// staleBefore. It reports false when another dispatcher holds a live claim
// or the message was already attempted.
func (r *MessageRepository) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET delivery_status = 'sending', claimed_at = NOW()
		 WHERE id = $1 AND delivered = false
		   AND (delivery_status = 'pending'
		        OR (delivery_status = 'sending' AND claimed_at < $2))`, id, staleBefore)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim message", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkResult records a completed delivery attempt and stamps sent_at.
func (r *MessageRepository) MarkResult(ctx context.Context, id string, delivered bool, status types.DeliveryStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE messages SET delivered = $2, delivery_status = $3, sent_at = NOW() WHERE id = $1`,
		id, delivered, string(status),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record delivery result", err)
	}
	return nil
}

// MarkError flags a message whose attempt failed before reaching a provider.
func (r *MessageRepository) MarkError(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE messages SET delivery_status = 'error' WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record delivery error", err)
	}
	return nil
}

// ListWarningCandidates returns delivered alert and summary messages sent
// before cutoff that have no upload and no warning for the same building
// created after they were sent. Oldest first.
func (r *MessageRepository) ListWarningCandidates(ctx context.Context, cutoff time.Time) ([]types.DispatchedMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages m
		 LEFT JOIN compliance_uploads u ON u.message_id = m.id
		 WHERE m.delivered = true
		   AND m.kind IN ('alert', 'daily_summary')
		   AND m.sent_at < $1
		   AND u.id IS NULL
		   AND NOT EXISTS (
		     SELECT 1 FROM messages w
		     WHERE w.building_id = m.building_id
		       AND w.kind = 'warning'
		       AND w.created_at > m.sent_at
		   )
		 ORDER BY m.sent_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query warning candidates", err)
	}
	defer rows.Close()

	var out []types.DispatchedMessage
	for rows.Next() {
		var m types.DispatchedMessage
		dest, finish := messageDest(&m)
		if err := rows.Scan(dest...); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan warning candidate", err)
		}
		finish()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating warning candidates", err)
	}
	return out, nil
}

// ListRateCandidates returns the building's delivered alert and summary
// messages sent at or after since, each with its earliest upload time.
func (r *MessageRepository) ListRateCandidates(ctx context.Context, buildingID string, since time.Time) ([]types.ComplianceCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`, u.uploaded_at
		 FROM messages m
		 LEFT JOIN LATERAL (
		   SELECT uploaded_at FROM compliance_uploads
		   WHERE message_id = m.id
		   ORDER BY uploaded_at ASC
		   LIMIT 1
		 ) u ON true
		 WHERE m.building_id = $1
		   AND m.kind IN ('alert', 'daily_summary')
		   AND m.delivered = true
		   AND m.sent_at >= $2`,
		buildingID, since,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query compliance candidates", err)
	}
	defer rows.Close()

	var out []types.ComplianceCandidate
	for rows.Next() {
		var c types.ComplianceCandidate
		dest, finish := messageDest(&c.Message)
		if err := rows.Scan(append(dest, &c.UploadedAt)...); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan compliance candidate", err)
		}
		finish()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating compliance candidates", err)
	}
	return out, nil
}
