package messaging

import (
	"context"
	"strings"

	"tempguard/internal/types"
)

// SaveTemplate creates or replaces the city's active template for kind.
// The content is validated against the placeholders allowed for kind.
func (s *Service) SaveTemplate(ctx context.Context, cityID string, kind types.MessageKind, content, subject string) (*types.MessageTemplate, error) {
	if strings.TrimSpace(content) == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "content is required", nil)
	}
	if err := ValidateTemplate(kind, content); err != nil {
		return nil, err
	}
	loc, err := s.locations.GetByID(ctx, cityID)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundLocation, "city not found", nil)
	}

	t := &types.MessageTemplate{
		ID:       s.newID(),
		CityID:   cityID,
		Kind:     kind,
		Subject:  subject,
		Content:  content,
		IsActive: true,
	}
	if err := s.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "message template saved",
		"city_id", cityID,
		"kind", kind,
		"template_id", t.ID,
	)
	return t, nil
}

// ListCityTemplates returns every template of a city, inactive included.
func (s *Service) ListCityTemplates(ctx context.Context, cityID string) ([]types.MessageTemplate, error) {
	out, err := s.templates.ListByCity(ctx, cityID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []types.MessageTemplate{}
	}
	return out, nil
}

// DeleteTemplate deactivates a template; the city falls back to the
// built-in text.
func (s *Service) DeleteTemplate(ctx context.Context, id string) error {
	return s.templates.Deactivate(ctx, id)
}

// templateFor returns the active city template for kind or the default.
func (s *Service) templateFor(ctx context.Context, cityID string, kind types.MessageKind) (string, error) {
	t, err := s.templates.GetActive(ctx, cityID, kind)
	if err != nil {
		return "", err
	}
	if t != nil && strings.TrimSpace(t.Content) != "" {
		return t.Content, nil
	}
	return DefaultTemplate(kind), nil
}
