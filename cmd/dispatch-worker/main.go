// Package main is the entrypoint for the dispatch worker Lambda.
//
// The worker consumes DispatchRequests from the dispatch SQS queue and
// delivers each referenced message through messaging.Service.Deliver.
// Messages already sent or claimed by the send-pending sweep are skipped,
// so the queue and the sweep can race safely.
//
// SQS partial batch responses are used: a record is reported in
// BatchItemFailures only when a retry could succeed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"tempguard/internal/app"
	"tempguard/internal/queue"
	"tempguard/internal/types"
)

// Deliverer is satisfied by *messaging.Service.
type Deliverer interface {
	Deliver(ctx context.Context, messageID string) (types.DeliveryStatus, error)
}

// LagRecorder is satisfied by *telemetry.Recorder.
type LagRecorder interface {
	RecordQueueLag(ctx context.Context, lag time.Duration)
}

type Handler struct {
	Deliverer Deliverer
	Metrics   LagRecorder // optional
	Logger    *slog.Logger
	Now       func() time.Time
}

// Handle processes one SQS batch.
func (h *Handler) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, record := range ev.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger().ErrorContext(ctx, "dispatch record failed, will retry",
				"sqs_message_id", record.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return resp, nil
}

// processRecord returns an error only for failures worth retrying. Bad
// payloads, unknown messages and messages whose outcome was already stored
// are acknowledged.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	logger := h.logger()

	req, err := queue.DecodeDispatch(record.Body)
	if err != nil {
		logger.ErrorContext(ctx, "discarding malformed dispatch request",
			"sqs_message_id", record.MessageId,
			"error", err,
		)
		return nil
	}
	logger = logger.With("trace_id", req.TraceID, "alert_event_id", req.AlertEventID)

	if h.Metrics != nil {
		if sent, ok := record.Attributes["SentTimestamp"]; ok {
			if ms, err := strconv.ParseInt(sent, 10, 64); err == nil {
				h.Metrics.RecordQueueLag(ctx, h.now().Sub(time.UnixMilli(ms)))
			}
		}
	}

	var retry []string
	for _, id := range req.MessageIDs {
		status, err := h.Deliverer.Deliver(ctx, id)
		switch {
		case err == nil:
			logger.InfoContext(ctx, "message dispatched", "message_id", id, "status", status)
		case status == types.DeliveryError:
			logger.ErrorContext(ctx, "message marked as error", "message_id", id, "error", err)
		case types.IsCode(err, types.ErrCodeNotFoundMessage):
			logger.WarnContext(ctx, "dispatch for unknown message", "message_id", id)
		default:
			logger.ErrorContext(ctx, "message dispatch failed", "message_id", id, "error", err)
			retry = append(retry, id)
		}
	}
	if len(retry) > 0 {
		return fmt.Errorf("%d of %d messages not dispatched: %v", len(retry), len(req.MessageIDs), retry)
	}
	return nil
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}
	defer a.Close()

	h := &Handler{Deliverer: a.Messages, Logger: logger}
	if a.Metrics != nil {
		h.Metrics = a.Metrics
	}
	logger.Info("dispatch worker starting", "environment", cfg.Environment)
	lambda.Start(h.Handle)
	return nil
}
