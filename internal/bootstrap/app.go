package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/billingbridge/internal/billing"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/config"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/billingbridge/internal/infrastructure/redis"
	"github.com/cassiomorais/billingbridge/internal/providers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Redis   *redis.Client
	Metrics *observability.Metrics

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, serviceName, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	var tp *sdktrace.TracerProvider
	if cfg.Observability.EnableTracing {
		tp, err = observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)
	logger.Info().Msg("Metrics initialized")

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		observability.Shutdown(context.Background(), tp)
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Redis:   redisClient,
		Metrics: metrics,
		tracer:  tp,
	}, nil
}

func (a *App) Close() {
	a.Redis.Close()
	if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to flush traces")
	}
}

// NewRegistry builds one billing service per configured app. Each app gets its
// own provider client and circuit breaker.
func NewRegistry(cfg *config.BillingConfig, logger zerolog.Logger, metrics *observability.Metrics) (*billing.Registry, error) {
	breaker := providers.BreakerSettings{
		MinRequests:  cfg.CircuitBreaker.MinRequests,
		FailureRatio: cfg.CircuitBreaker.FailureRatio,
		Interval:     cfg.CircuitBreaker.Interval,
		Timeout:      cfg.CircuitBreaker.Timeout,
	}
	if metrics != nil {
		breaker.OnStateChange = metrics.BreakerStateChanged
	}
	factory := providers.NewFactory(breaker)
	verifier := providers.NewStripeVerifier(cfg.WebhookTolerance)

	services := make([]*billing.Service, 0, len(cfg.Apps))
	for _, app := range cfg.Apps {
		provider, err := factory.New(providers.AppProvider{
			App:       app.Name,
			Kind:      app.Provider,
			SecretKey: app.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", app.Name, err)
		}

		svc, err := billing.New(billing.ServiceConfig{
			AppName:                    app.Name,
			AppVersion:                 app.AppVersion,
			Currency:                   app.Currency,
			APIKey:                     app.APIKey,
			WebhookSigningSecret:       app.WebhookSigningSecret,
			RequiredProviderAPIVersion: app.RequiredAPIVersion,
		}, provider, verifier,
			billing.WithLogger(logger),
			billing.WithMetrics(metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("app %s: %w", app.Name, err)
		}
		services = append(services, svc)
	}

	return billing.NewRegistry(services...)
}
