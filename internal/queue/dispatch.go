// Package queue publishes dispatch requests to the SQS queue consumed by
// the dispatch worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"tempguard/internal/config"
	"tempguard/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// DispatchPublisher sends DispatchRequests to the dispatch queue.
type DispatchPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewDispatchPublisher returns nil when no dispatch queue is configured so
// callers can leave publishing off.
func NewDispatchPublisher(client SQSSender, awsCfg config.AWSConfig, logger *slog.Logger) *DispatchPublisher {
	if awsCfg.DispatchQueueURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchPublisher{
		client:   client,
		queueURL: awsCfg.DispatchQueueURL,
		logger:   logger,
	}
}

// PublishDispatch enqueues one request. A request without a trace ID gets a
// fresh one so the worker's logs can still be correlated.
func (p *DispatchPublisher) PublishDispatch(ctx context.Context, req types.DispatchRequest) error {
	if len(req.MessageIDs) == 0 {
		return nil
	}
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal DispatchRequest: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"trace_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.TraceID),
			},
		},
	}
	if req.AlertEventID != "" {
		input.MessageAttributes["alert_event_id"] = sqsTypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(req.AlertEventID),
		}
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send DispatchRequest to %s: %w", p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "dispatch request sent",
		"queue_url", p.queueURL,
		"trace_id", req.TraceID,
		"alert_event_id", req.AlertEventID,
		"message_count", len(req.MessageIDs),
	)
	return nil
}

// DecodeDispatch parses an SQS message body produced by PublishDispatch.
func DecodeDispatch(body string) (types.DispatchRequest, error) {
	var req types.DispatchRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return req, types.NewAppError(types.ErrCodeValidationInvalidPayload, "malformed dispatch request", err)
	}
	return req, nil
}
