package compliance

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"tempguard/internal/types"
)

// Evaluate derives a message's compliance status at now. The message is
// compliant when it has an upload and no more than window has passed since
// it was sent.
func Evaluate(msg *types.DispatchedMessage, upload *types.ComplianceUpload, window time.Duration, now time.Time) *types.ComplianceStatus {
	elapsed := now.Sub(msg.EffectiveSentAt())
	status := &types.ComplianceStatus{
		BuildingID:        msg.BuildingID,
		MessageID:         msg.ID,
		HasUpload:         upload != nil,
		HoursSinceMessage: types.Round(elapsed.Hours(), 1),
	}
	if upload != nil {
		t := upload.UploadedAt
		status.UploadTime = &t
	}
	status.IsCompliant = status.HasUpload && elapsed <= window
	return status
}

// UploadedInTime reports whether an upload at uploadedAt answers a message
// sent at sentAt within window.
func UploadedInTime(sentAt, uploadedAt time.Time, window time.Duration) bool {
	return uploadedAt.Sub(sentAt) <= window
}

// EvaluateCompliance loads a message and its upload and evaluates them
// against the current time. An unknown message yields nil.
func (s *Service) EvaluateCompliance(ctx context.Context, messageID string) (*types.ComplianceStatus, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if types.IsCode(err, types.ErrCodeNotFoundMessage) {
			return nil, nil
		}
		return nil, err
	}
	upload, err := s.uploads.GetByMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	return Evaluate(msg, upload, s.window, s.clock.Now()), nil
}

// BuildingComplianceRate returns the percentage of the building's delivered
// alert and summary messages from the last days days that were answered
// in time. With nothing eligible the building is fully compliant.
func (s *Service) BuildingComplianceRate(ctx context.Context, buildingID string, days int) (float64, error) {
	if days <= 0 {
		days = DefaultRateDays
	}
	since := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	candidates, err := s.messages.ListRateCandidates(ctx, buildingID, since)
	if err != nil {
		return 0, err
	}
	return ComplianceRate(candidates, s.window), nil
}

// ComplianceRate is the share of candidates whose first upload arrived
// within window of the message being sent, as a percentage rounded to one
// decimal. An empty set is 100.
func ComplianceRate(candidates []types.ComplianceCandidate, window time.Duration) float64 {
	if len(candidates) == 0 {
		return 100
	}
	compliant := 0
	for _, c := range candidates {
		if c.UploadedAt != nil && UploadedInTime(c.Message.EffectiveSentAt(), *c.UploadedAt, window) {
			compliant++
		}
	}
	return types.Round(float64(compliant)/float64(len(candidates))*100, 1)
}

// BuildingRate is one building's entry in a fleet report.
type BuildingRate struct {
	BuildingID   string  `json:"buildingId"`
	BuildingName string  `json:"buildingName"`
	Rate         float64 `json:"rate"`
}

// FleetComplianceRates computes the rate for every building in a city.
// Buildings are evaluated concurrently and returned in listing order.
func (s *Service) FleetComplianceRates(ctx context.Context, cityID string, days int) ([]BuildingRate, error) {
	buildings, err := s.buildings.ListByCity(ctx, cityID)
	if err != nil {
		return nil, err
	}

	rates := make([]BuildingRate, len(buildings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, b := range buildings {
		g.Go(func() error {
			rate, err := s.BuildingComplianceRate(gctx, b.ID, days)
			if err != nil {
				return fmt.Errorf("building %s: %w", b.ID, err)
			}
			rates[i] = BuildingRate{BuildingID: b.ID, BuildingName: b.Name, Rate: rate}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rates, nil
}
