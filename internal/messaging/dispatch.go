package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tempguard/internal/types"
)

// errNoAddress marks a message whose recipient has no address for its
// channel. Such messages fail without reaching a provider.
var errNoAddress = errors.New("recipient has no address for channel")

// SendPending delivers up to PendingBatchSize undelivered messages queued
// in the last PendingLookback, oldest first. A failure on one message is
// recorded on that message and does not stop the pass.
func (s *Service) SendPending(ctx context.Context) (*types.DispatchSummary, error) {
	now := s.clock.Now()
	pending, err := s.messages.ListPending(ctx, now.Add(-PendingLookback), now.Add(-ClaimLease), PendingBatchSize)
	if err != nil {
		return nil, err
	}

	summary := &types.DispatchSummary{}
	for i := range pending {
		summary.Processed++
		status, err := s.deliver(ctx, &pending[i])
		switch {
		case err != nil:
			summary.Failed++
			s.logger.ErrorContext(ctx, "message dispatch failed",
				"message_id", pending[i].Message.ID,
				"error", err,
			)
		case status == types.DeliveryDelivered:
			summary.Sent++
		case status == "":
			// Claimed by another dispatcher.
			summary.Processed--
		default:
			summary.Failed++
		}
	}

	s.logger.InfoContext(ctx, "pending messages sent",
		"processed", summary.Processed,
		"sent", summary.Sent,
		"failed", summary.Failed,
	)
	return summary, nil
}

// Deliver sends a single queued message. A message that was already
// attempted, or holds a live claim elsewhere, is left alone and reported
// with an empty status.
func (s *Service) Deliver(ctx context.Context, messageID string) (types.DeliveryStatus, error) {
	out, err := s.messages.GetOutbound(ctx, messageID)
	if err != nil {
		return "", err
	}
	if out.Message.Delivered {
		return "", nil
	}
	switch out.Message.DeliveryStatus {
	case types.DeliveryPending, types.DeliverySending:
	default:
		return "", nil
	}
	return s.deliver(ctx, out)
}

// deliver claims the message, hands it to the provider for its channel and
// records the outcome. Provider rejections are stored as failed; anything
// that prevents recording an outcome is stored as error.
func (s *Service) deliver(ctx context.Context, out *types.OutboundMessage) (types.DeliveryStatus, error) {
	msg := &out.Message
	claimed, err := s.messages.Claim(ctx, msg.ID, s.clock.Now().Add(-ClaimLease))
	if err != nil {
		return "", err
	}
	if !claimed {
		return "", nil
	}

	start := s.clock.Now()
	sendErr := s.send(ctx, out)
	status := types.DeliveryDelivered
	if sendErr != nil {
		status = types.DeliveryFailed
		s.logger.WarnContext(ctx, "provider rejected message",
			"message_id", msg.ID,
			"channel", msg.Channel,
			"error", sendErr,
		)
	}

	if err := s.messages.MarkResult(ctx, msg.ID, status == types.DeliveryDelivered, status); err != nil {
		if markErr := s.messages.MarkError(ctx, msg.ID); markErr != nil {
			err = errors.Join(err, markErr)
		}
		s.record(ctx, msg.Channel, types.DeliveryError, start)
		return types.DeliveryError, fmt.Errorf("record result for %s: %w", msg.ID, err)
	}
	s.record(ctx, msg.Channel, status, start)
	return status, nil
}

func (s *Service) send(ctx context.Context, out *types.OutboundMessage) error {
	msg := &out.Message
	switch msg.Channel {
	case types.ChannelSMS:
		if out.Phone == "" {
			return errNoAddress
		}
		_, err := s.sms.SendSMS(ctx, types.SMSInput{To: out.Phone, Body: msg.Content, ReferenceID: msg.ID})
		return err
	case types.ChannelEmail:
		if out.Email == "" {
			return errNoAddress
		}
		input, err := s.renderer.Build(msg, out.Email)
		if err != nil {
			return err
		}
		_, err = s.email.Send(ctx, input)
		return err
	default:
		return fmt.Errorf("unknown channel %q", msg.Channel)
	}
}

func (s *Service) record(ctx context.Context, ch types.Channel, status types.DeliveryStatus, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordDelivery(ctx, ch, status, s.clock.Now().Sub(start))
	}
}
