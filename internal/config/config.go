// Package config defines the process configuration for tempguard binaries.
// Configuration is loaded once at startup and treated as immutable.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format aborts startup.
package config

import (
	"time"

	"tempguard/internal/types"
)

// SecretString is an alias for types.SecretString so config callers do not
// need to import types for redacted fields.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the section they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"tempguard"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Email         EmailConfig
	SMS           SMSConfig
	Weather       WeatherConfig
	Compliance    ComplianceConfig
	Scheduler     SchedulerConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server settings and the public portal URL used in
// upload links.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	AppURL         string        `envconfig:"APP_URL" validate:"required,url"` // no trailing slash
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the Postgres DSN and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS region and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Empty disables queue publishing; messages are then only sent by the
	// send-pending sweep.
	DispatchQueueURL string `envconfig:"SQS_DISPATCH" validate:"omitempty,url"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// EmailConfig selects and configures the outbound email provider.
type EmailConfig struct {
	Provider       string       `envconfig:"EMAIL_PROVIDER" default:"sendgrid" validate:"oneof=sendgrid ses stub"`
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required_if=Provider sendgrid"`
	SendGridURL    string       `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"alerts@tempguard.app" validate:"email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Temperature Alert Portal"`
}

// SMSConfig configures Twilio. An empty AccountSID runs the stub sender.
type SMSConfig struct {
	AccountSID string       `envconfig:"TWILIO_ACCOUNT_SID"`
	AuthToken  SecretString `envconfig:"TWILIO_AUTH_TOKEN" validate:"required_with=AccountSID"`
	FromNumber string       `envconfig:"TWILIO_PHONE_NUMBER" validate:"required_with=AccountSID"`
	BaseURL    string       `envconfig:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
}

// WeatherConfig configures the NWS gridpoint forecast client.
type WeatherConfig struct {
	BaseURL   string        `envconfig:"NWS_BASE_URL" default:"https://api.weather.gov" validate:"url"`
	UserAgent string        `envconfig:"NWS_USER_AGENT" default:"TempAlertPortal/1.0"`
	Timeout   time.Duration `envconfig:"NWS_TIMEOUT" default:"10s"`
	// FallbackEnabled serves a synthetic curve when the NWS call fails.
	FallbackEnabled bool `envconfig:"NWS_FALLBACK_ENABLED" default:"true"`
}

// ComplianceConfig holds the upload window.
type ComplianceConfig struct {
	WindowHours float64 `envconfig:"COMPLIANCE_WINDOW_HOURS" default:"2" validate:"gt=0"`
}

// Window returns the compliance window as a duration.
func (c ComplianceConfig) Window() time.Duration {
	return time.Duration(c.WindowHours * float64(time.Hour))
}

// SchedulerConfig holds the cron specs used by the local scheduler and the
// lock TTL shared with the Lambda entry point.
type SchedulerConfig struct {
	CheckAlertsSpec     string        `envconfig:"CRON_CHECK_ALERTS" default:"0 * * * *"`
	DailySummarySpec    string        `envconfig:"CRON_DAILY_SUMMARY" default:"0 7 * * *"`
	SendPendingSpec     string        `envconfig:"CRON_SEND_PENDING" default:"*/5 * * * *"`
	CheckComplianceSpec string        `envconfig:"CRON_CHECK_COMPLIANCE" default:"*/15 * * * *"`
	LockTTL             time.Duration `envconfig:"SCHEDULER_LOCK_TTL" default:"10m"`
}

// SecurityConfig holds the cron shared secret and CORS settings.
type SecurityConfig struct {
	CronSecret         SecretString `envconfig:"CRON_SECRET" validate:"required,min=16"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"TempGuard"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
