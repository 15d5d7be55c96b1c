package compliance

import (
	"context"
	"strings"
	"time"

	"tempguard/internal/types"
)

// RecordUpload stores evidence for a message and derives its compliance
// flag. Only alert and summary messages accept uploads.
func (s *Service) RecordUpload(ctx context.Context, messageID, photoRef string) (*types.ComplianceUpload, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "message_id is required", nil)
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.Kind.RequestsUpload() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidKind,
			"uploads are only accepted for alert and daily summary messages", nil)
	}

	upload := &types.ComplianceUpload{
		ID:          s.newID(),
		MessageID:   msg.ID,
		BuildingID:  msg.BuildingID,
		UploadedAt:  s.clock.Now(),
		PhotoRef:    photoRef,
		WindowHours: s.window.Hours(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		return nil, err
	}
	if err := s.applyCompliance(ctx, upload, msg); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "compliance upload recorded",
		"upload_id", upload.ID,
		"message_id", msg.ID,
		"building_id", msg.BuildingID,
		"compliant", upload.IsCompliant,
	)
	return upload, nil
}

// MarkUploadCompliant recomputes an upload's compliance flag from its
// upload time and the message's sent time.
func (s *Service) MarkUploadCompliant(ctx context.Context, uploadID string) (*types.ComplianceUpload, error) {
	upload, err := s.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.GetByID(ctx, upload.MessageID)
	if err != nil {
		return nil, err
	}
	if err := s.applyCompliance(ctx, upload, msg); err != nil {
		return nil, err
	}
	return upload, nil
}

// applyCompliance uses the window stored with the upload so that a later
// configuration change does not rewrite history.
func (s *Service) applyCompliance(ctx context.Context, upload *types.ComplianceUpload, msg *types.DispatchedMessage) error {
	window := s.window
	if upload.WindowHours > 0 {
		window = time.Duration(upload.WindowHours * float64(time.Hour))
	}
	compliant := UploadedInTime(msg.EffectiveSentAt(), upload.UploadedAt, window)
	if err := s.uploads.SetCompliant(ctx, upload.ID, compliant); err != nil {
		return err
	}
	upload.IsCompliant = compliant
	return nil
}
