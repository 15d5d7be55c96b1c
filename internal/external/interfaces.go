package external

import (
	"context"

	"tempguard/internal/types"
)

// WeatherProvider returns the hourly temperature forecast for a grid cell.
// Implementations never return an empty forecast without an error.
type WeatherProvider interface {
	HourlyForecast(ctx context.Context, grid types.GridDescriptor) ([]types.ForecastPoint, error)
}

// EmailProvider transmits a rendered email and returns the provider's
// message ID.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}

// SMSProvider transmits a text message and returns the provider's
// message ID.
type SMSProvider interface {
	SendSMS(ctx context.Context, input types.SMSInput) (providerMsgID string, err error)
}
