// Package telemetry publishes operational metrics to CloudWatch.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"tempguard/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Recorder emits delivery, cycle, weather and API metrics. Failures to
// publish are logged and never returned; metrics must not break the
// operation being measured.
//
// Metrics emitted:
//   - DeliveryAttempt: Dims {Channel, Result}
//   - DeliveryAttemptLatency: Dims {Channel}
//   - DispatchQueueLag: no dims
//   - CycleLocationsChecked, CycleAlertsFired, CycleLocationFailures: Dims {Cycle}
//   - WeatherFallback: Dims {Endpoint}
//   - APIRequestCount, APILatency: Dims {Endpoint, Method, Status}
type Recorder struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewRecorder returns a Recorder publishing under namespace, or under
// types.MetricNamespace when namespace is empty. A nil logger logs to
// slog.Default.
func NewRecorder(client CloudWatchClient, namespace string, logger types.Logger) *Recorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = types.NewSlogAdapter(nil)
	}
	return &Recorder{client: client, namespace: namespace, logger: logger}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

func (r *Recorder) put(ctx context.Context, what string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	}
	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.Error("failed to record metric",
			"metric", what,
			"error", err.Error(),
		)
	}
}

// RecordDelivery emits the attempt count and its latency in one call.
func (r *Recorder) RecordDelivery(ctx context.Context, channel types.Channel, status types.DeliveryStatus, latency time.Duration) {
	r.put(ctx, types.MetricDeliveryAttempt,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDeliveryAttempt),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: []cwtypes.Dimension{
				dim(types.DimChannel, string(channel)),
				dim(types.DimResult, string(status)),
			},
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricDeliveryLatency),
			Value:      aws.Float64(float64(latency.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{dim(types.DimChannel, string(channel))},
		},
	)
}

// RecordQueueLag tracks the time between a dispatch request being queued
// and the worker picking it up.
func (r *Recorder) RecordQueueLag(ctx context.Context, lag time.Duration) {
	r.put(ctx, types.MetricDispatchLag, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDispatchLag),
		Value:      aws.Float64(float64(lag.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
	})
}

func (r *Recorder) RecordCycle(ctx context.Context, cycle string, checked, fired, failures int) {
	dims := []cwtypes.Dimension{dim(types.DimCycle, cycle)}
	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Value:      aws.Float64(float64(v)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		}
	}
	r.put(ctx, "Cycle",
		count(types.MetricCycleLocations, checked),
		count(types.MetricCycleAlerts, fired),
		count(types.MetricCycleFailures, failures),
	)
}

// RecordWeatherFallback counts forecasts replaced by the synthetic curve.
// reason is the NWS office whose request failed.
func (r *Recorder) RecordWeatherFallback(ctx context.Context, reason string) {
	r.put(ctx, types.MetricWeatherFallback, cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricWeatherFallback),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{dim(types.DimEndpoint, reason)},
	})
}

// RecordAPIRequest is called by the HTTP metrics middleware.
func (r *Recorder) RecordAPIRequest(ctx context.Context, method, endpoint string, status int, duration time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, endpoint),
		dim(types.DimMethod, method),
		dim(types.DimStatus, strconv.Itoa(status)),
	}
	r.put(ctx, types.MetricAPIRequestCount,
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPIRequestCount),
			Value:      aws.Float64(1),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		},
		cwtypes.MetricDatum{
			MetricName: aws.String(types.MetricAPILatency),
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: dims,
		},
	)
}
