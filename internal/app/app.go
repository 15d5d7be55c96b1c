// Package app builds the service graph shared by the tempguard binaries:
// the Postgres pool, the repositories, the outbound providers and the
// domain services, all configured from a loaded config.Config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"tempguard/internal/alerts"
	"tempguard/internal/compliance"
	"tempguard/internal/config"
	"tempguard/internal/db"
	"tempguard/internal/energy"
	"tempguard/internal/external"
	"tempguard/internal/messaging"
	"tempguard/internal/queue"
	"tempguard/internal/scheduler"
	"tempguard/internal/telemetry"
	"tempguard/internal/types"
)

// App holds the wired services. Metrics is nil when metrics are disabled.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	Metrics    *telemetry.Recorder
	Alerts     *alerts.Service
	Energy     *energy.Service
	Compliance *compliance.Service
	Messages   *messaging.Service
	Runner     *scheduler.Runner
}

// New connects to Postgres and AWS and wires every service. The caller
// owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool}
	if cfg.Observability.EnableMetrics {
		a.Metrics = telemetry.NewRecorder(cloudwatch.NewFromConfig(awsCfg),
			cfg.Observability.MetricNamespace, types.NewSlogAdapter(logger))
	}

	email, err := newEmailProvider(cfg, awsCfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	renderer, err := messaging.NewEmailRenderer(types.SenderIdentity{
		Address: cfg.Email.FromAddress,
		Name:    cfg.Email.FromName,
	}, cfg.Server.AppURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building email renderer: %w", err)
	}

	var (
		locations  = db.NewLocationRepository(pool)
		buildings  = db.NewBuildingRepository(pool)
		recipients = db.NewRecipientRepository(pool)
		messages   = db.NewMessageRepository(pool)
		uploads    = db.NewUploadRepository(pool)
	)

	msgCfg := messaging.Config{
		Messages:   messages,
		Templates:  db.NewTemplateRepository(pool),
		Locations:  locations,
		Buildings:  buildings,
		Recipients: recipients,
		Email:      email,
		SMS:        newSMSProvider(cfg.SMS, logger),
		Renderer:   renderer,
		AppURL:     cfg.Server.AppURL,
		Logger:     logger,
	}
	if pub := queue.NewDispatchPublisher(newSQSClient(awsCfg), cfg.AWS, logger); pub != nil {
		msgCfg.Publisher = pub
	}
	if a.Metrics != nil {
		msgCfg.Metrics = a.Metrics
	}
	a.Messages, err = messaging.NewService(msgCfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	weatherCfg := external.NWSClientConfig{
		BaseURL:         cfg.Weather.BaseURL,
		UserAgent:       cfg.Weather.UserAgent,
		FallbackEnabled: cfg.Weather.FallbackEnabled,
		Logger:          logger,
	}
	alertCfg := alerts.Config{
		Locations: locations,
		Snapshots: db.NewSnapshotRepository(pool),
		Events:    db.NewAlertEventRepository(pool),
		Queuer:    a.Messages,
		Sender:    a.Messages,
		Logger:    logger,
	}
	if a.Metrics != nil {
		weatherCfg.Metrics = a.Metrics
		alertCfg.Metrics = a.Metrics
	}
	alertCfg.Weather = external.NewNWSClient(&http.Client{Timeout: cfg.Weather.Timeout}, weatherCfg)
	a.Alerts = alerts.NewService(alertCfg)

	a.Energy = energy.NewService(energy.Config{
		Store:     db.NewEnergyRepository(pool),
		Buildings: buildings,
		Logger:    logger,
	})

	a.Compliance = compliance.NewService(compliance.Config{
		Messages:   messages,
		Uploads:    uploads,
		Recipients: recipients,
		Buildings:  buildings,
		Warnings:   a.Messages,
		Sender:     a.Messages,
		Window:     cfg.Compliance.Window(),
		Logger:     logger,
	})

	a.Runner = scheduler.NewRunner(scheduler.Config{
		Alerts:     a.Alerts,
		Messages:   a.Messages,
		Compliance: a.Compliance,
		Locks:      db.NewJobLockRepository(pool),
		History:    db.NewJobHistoryRepository(pool),
		LockTTL:    cfg.Scheduler.LockTTL,
		WorkerID:   workerID(),
		Logger:     logger,
	})
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	a.Pool.Close()
	return nil
}

func loadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config (region=%s): %w", cfg.Region, err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

func newSQSClient(awsCfg aws.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg)
}

func newEmailProvider(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (messaging.EmailProvider, error) {
	switch cfg.Email.Provider {
	case "sendgrid":
		return external.NewSendGridClient(&http.Client{Timeout: 15 * time.Second}, external.SendGridClientConfig{
			APIKey:    cfg.Email.SendGridAPIKey,
			BaseURL:   cfg.Email.SendGridURL,
			UserAgent: cfg.Service,
			Logger:    logger,
		}), nil
	case "ses":
		return external.NewSESClient(awsCfg, external.SESClientConfig{Logger: logger}), nil
	case "stub":
		return external.NewStubEmailProvider(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func newSMSProvider(cfg config.SMSConfig, logger *slog.Logger) messaging.SMSProvider {
	if cfg.AccountSID == "" {
		return external.NewStubSMSProvider(logger)
	}
	return external.NewTwilioClient(&http.Client{Timeout: 15 * time.Second}, external.TwilioClientConfig{
		AccountSID: cfg.AccountSID,
		AuthToken:  cfg.AuthToken,
		FromNumber: cfg.FromNumber,
		BaseURL:    cfg.BaseURL,
		Logger:     logger,
	})
}

// workerID identifies this process in job_locks. Lambda exposes the log
// stream, which is unique per execution environment.
func workerID() string {
	if stream := os.Getenv("AWS_LAMBDA_LOG_STREAM_NAME"); stream != "" {
		return stream
	}
	if host, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return ""
}

// NewLogger returns a JSON slog.Logger at level. Unknown levels mean info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// LoadConfig loads the configuration, resolving SSM pointers outside local.
func LoadConfig() (*config.Config, error) {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		provider = config.NewSSMProvider(region)
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
