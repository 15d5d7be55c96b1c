package compliance

import (
	"context"

	"tempguard/internal/types"
)

// WarningReport summarises one CheckAndSendWarnings pass.
type WarningReport struct {
	Candidates int                    `json:"candidates"`
	Warned     int                    `json:"warned"`
	Skipped    int                    `json:"skipped"`
	Failed     int                    `json:"failed"`
	MessageIDs []string               `json:"messageIds"`
	Dispatch   *types.DispatchSummary `json:"dispatch,omitempty"`
}

// CheckAndSendWarnings queues a reminder for every delivered alert or
// summary that is past the compliance window without an upload, unless the
// building was already warned since. Inactive recipients are skipped. When
// anything was queued the pending messages are sent straight away.
func (s *Service) CheckAndSendWarnings(ctx context.Context) (*WarningReport, error) {
	now := s.clock.Now()
	candidates, err := s.messages.ListWarningCandidates(ctx, now.Add(-s.window))
	if err != nil {
		return nil, err
	}

	report := &WarningReport{Candidates: len(candidates), MessageIDs: []string{}}
	for i := range candidates {
		msg := &candidates[i]

		recipient, err := s.recipients.GetByID(ctx, msg.RecipientID)
		if err != nil && !types.IsCode(err, types.ErrCodeNotFoundRecipient) {
			report.Failed++
			s.logger.ErrorContext(ctx, "load recipient for warning failed",
				"message_id", msg.ID,
				"recipient_id", msg.RecipientID,
				"error", err,
			)
			continue
		}
		if recipient == nil || !recipient.IsActive {
			report.Skipped++
			continue
		}

		hoursAgo := types.Round(now.Sub(msg.EffectiveSentAt()).Hours(), 1)
		ids, err := s.warnings.QueueWarning(ctx, msg, recipient, hoursAgo)
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "queue compliance warning failed",
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		report.Warned++
		report.MessageIDs = append(report.MessageIDs, ids...)
	}

	if len(report.MessageIDs) > 0 && s.sender != nil {
		summary, err := s.sender.SendPending(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "send pending after warnings failed", "error", err)
		}
		report.Dispatch = summary
	}

	s.logger.InfoContext(ctx, "compliance warnings checked",
		"candidates", report.Candidates,
		"warned", report.Warned,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}
