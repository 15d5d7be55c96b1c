package messaging

import (
	"context"
	"fmt"
	"strconv"

	"tempguard/internal/types"
)

// uploadSuffix is appended to every message that asks for evidence.
const uploadSuffix = "\n\nUpload compliance photo: %s"

// QueueForAlert creates one pending message per channel for every active
// recipient of every receiving building in the event's city. The upload
// link of each message carries that message's own ID. It returns the IDs
// of the queued messages.
func (s *Service) QueueForAlert(ctx context.Context, event *types.AlertEvent) ([]string, error) {
	loc, err := s.locations.GetByID(ctx, event.LocationID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation,
			fmt.Sprintf("city %s not found", event.LocationID), nil)
	}

	kind := types.MessageKindForAlert(event.Kind)
	content, err := s.templateFor(ctx, loc.ID, kind)
	if err != nil {
		return nil, err
	}
	buildings, err := s.buildings.ListReceivingByCity(ctx, loc.ID)
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, b := range buildings {
		recipients, err := s.recipients.ListActiveByBuilding(ctx, b.ID)
		if err != nil {
			return ids, err
		}
		for i := range recipients {
			r := &recipients[i]
			if !r.IsActive {
				continue
			}
			for _, ch := range r.Channels() {
				id := s.newID()
				vars := eventVars(event, loc, &b, UploadURL(s.appURL, id))
				body, err := Render(kind, content, vars)
				if err != nil {
					return ids, err
				}
				body += fmt.Sprintf(uploadSuffix, UploadURL(s.appURL, id))

				if err := s.messages.Create(ctx, &types.DispatchedMessage{
					ID:             id,
					AlertEventID:   event.ID,
					BuildingID:     b.ID,
					RecipientID:    r.ID,
					Kind:           kind,
					Channel:        ch,
					Content:        body,
					DeliveryStatus: types.DeliveryPending,
				}); err != nil {
					return ids, fmt.Errorf("queue %s message for recipient %s: %w", ch, r.ID, err)
				}
				ids = append(ids, id)
			}
		}
	}

	s.publish(ctx, event.ID, ids)
	s.logger.InfoContext(ctx, "messages queued",
		"alert_event_id", event.ID,
		"city_id", loc.ID,
		"kind", kind,
		"count", len(ids),
	)
	return ids, nil
}

// QueueWarning creates a compliance reminder for a message that is still
// waiting for its upload, on each of the recipient's channels. The upload
// link points at the original message.
func (s *Service) QueueWarning(ctx context.Context, original *types.DispatchedMessage, recipient *types.Recipient, hoursAgo float64) ([]string, error) {
	building, err := s.buildings.GetByID(ctx, original.BuildingID)
	if err != nil {
		return nil, err
	}
	var cityName string
	loc, err := s.locations.GetByID(ctx, building.CityID)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		cityName = loc.Name
	}

	content, err := s.templateFor(ctx, building.CityID, types.MessageWarning)
	if err != nil {
		return nil, err
	}
	body, err := Render(types.MessageWarning, content, TemplateVars{
		PlaceholderHoursAgo:     formatNumber(hoursAgo),
		PlaceholderUploadURL:    UploadURL(s.appURL, original.ID),
		PlaceholderCityName:     cityName,
		PlaceholderBuildingName: building.Name,
	})
	if err != nil {
		return nil, err
	}

	ids := []string{}
	for _, ch := range recipient.Channels() {
		id := s.newID()
		if err := s.messages.Create(ctx, &types.DispatchedMessage{
			ID:             id,
			BuildingID:     original.BuildingID,
			RecipientID:    recipient.ID,
			Kind:           types.MessageWarning,
			Channel:        ch,
			Content:        body,
			DeliveryStatus: types.DeliveryPending,
		}); err != nil {
			return ids, fmt.Errorf("queue warning for %s: %w", original.ID, err)
		}
		ids = append(ids, id)
	}
	s.publish(ctx, "", ids)
	return ids, nil
}

// publish is best effort: messages it fails to announce are still picked
// up by the next SendPending pass.
func (s *Service) publish(ctx context.Context, eventID string, ids []string) {
	if s.publisher == nil || len(ids) == 0 {
		return
	}
	req := types.DispatchRequest{
		MessageIDs:   ids,
		AlertEventID: eventID,
		TraceID:      types.GetRequestID(ctx),
		QueuedAt:     s.clock.Now(),
	}
	if err := s.publisher.PublishDispatch(ctx, req); err != nil {
		s.logger.WarnContext(ctx, "publish dispatch request failed",
			"alert_event_id", eventID,
			"count", len(ids),
			"error", err,
		)
	}
}

func eventVars(event *types.AlertEvent, loc *types.LocationConfig, b *types.Building, uploadURL string) TemplateVars {
	vars := TemplateVars{
		PlaceholderUploadURL:    uploadURL,
		PlaceholderCityName:     loc.Name,
		PlaceholderBuildingName: b.Name,
	}
	if f := event.Measurement.Fluctuation; f != nil {
		vars[PlaceholderTemperatureChange] = formatNumber(f.TemperatureChange)
		vars[PlaceholderTimeWindow] = strconv.Itoa(f.TimeWindow)
		vars[PlaceholderCurrentTemp] = formatNumber(f.CurrentTemp)
		vars[PlaceholderFutureTemp] = formatNumber(f.FutureTemp)
	}
	if d := event.Measurement.Summary; d != nil {
		vars[PlaceholderAverageTemp] = formatNumber(d.AverageTemp)
		vars[PlaceholderMaxTemp] = strconv.Itoa(d.MaxTemp)
		vars[PlaceholderMinTemp] = strconv.Itoa(d.MinTemp)
		vars[PlaceholderTemperatureChange] = formatNumber(d.TemperatureChange)
	}
	return vars
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(types.Round(v, 1), 'f', -1, 64)
}
