package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorErrorFormat(t *testing.T) {
	appErr := &AppError{
		Code:    ErrCodeValidationInvalidMonth,
		Message: "month must be between 1 and 12",
	}
	assert.Equal(t, "validation_invalid_month: month must be between 1 and 12", appErr.Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	underlying := errors.New("connection reset")
	appErr := NewAppError(ErrCodeInternalDB, "failed to query messages", underlying)

	assert.Same(t, underlying, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, underlying))
}

func TestAppErrorErrorsAs(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFoundMessage, "message not found", nil)
	wrapped := fmt.Errorf("handler failed: %w", appErr)

	var target *AppError
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrCodeNotFoundMessage, target.Code)
}

func TestIsCode(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", NewAppError(ErrCodeNotFoundMessage, "message not found", nil))

	assert.True(t, IsCode(wrapped, ErrCodeNotFoundMessage))
	assert.False(t, IsCode(wrapped, ErrCodeNotFoundUpload))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeNotFoundMessage))
	assert.False(t, IsCode(nil, ErrCodeNotFoundMessage))
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeValidationPlaceholder, http.StatusBadRequest},
		{ErrCodeAuthCronSecret, http.StatusForbidden},
		{ErrCodeNotFoundLocation, http.StatusNotFound},
		{ErrCodeNotFoundComparison, http.StatusNotFound},
		{ErrCodeConflictUpload, http.StatusConflict},
		{ErrCodeRecipientBlocked, http.StatusForbidden},
		{ErrCodeUpstreamWeather, http.StatusBadGateway},
		{ErrCodeUpstreamSMSProvider, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAppErrorWithDetails_DoesNotMutateOriginal(t *testing.T) {
	orig := NewAppErrorWithDetails(ErrCodeValidationInvalidValue, "bad input", nil, map[string]any{"field": "month"})
	enriched := orig.WithDetails(map[string]any{"value": 13})

	assert.Len(t, orig.Details, 1)
	assert.Equal(t, map[string]any{"field": "month", "value": 13}, enriched.Details)
	assert.Equal(t, orig.Code, enriched.Code)
}

func TestRound(t *testing.T) {
	tests := []struct {
		x      float64
		places int
		want   float64
	}{
		{12.345, 1, 12.3},
		{12.35, 1, 12.4},
		{-2.25, 1, -2.2},
		{-2.26, 1, -2.3},
		{0.123456, 4, 0.1235},
		{10, 2, 10},
		{57.5, 0, 58},
		{-57.5, 0, -57},
	}
	for _, tt := range tests {
		if got := Round(tt.x, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.x, tt.places, got, tt.want)
		}
	}
}
