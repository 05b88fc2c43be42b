package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/billingbridge/internal/bootstrap"
	"github.com/cassiomorais/billingbridge/internal/fulfillment"
	infraRedis "github.com/cassiomorais/billingbridge/internal/infrastructure/redis"
	pkgRetry "github.com/cassiomorais/billingbridge/pkg/retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "billingbridge-worker", "billingbridge_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker

	// --- Fulfillment endpoints ---
	endpoints := make(map[string]string, len(app.Config.Billing.Apps))
	for _, a := range app.Config.Billing.Apps {
		if a.FulfillmentURL == "" {
			app.Logger.Warn().Str("app", a.Name).Msg("No fulfillment_url configured, records will go to the DLQ")
			continue
		}
		endpoints[a.Name] = a.FulfillmentURL
	}

	retryCfg := pkgRetry.DefaultConfig()
	retryCfg.MaxAttempts = workerCfg.MaxAttempts
	retryCfg.InitialDelay = workerCfg.RetryDelay
	retryCfg.OnRetry = func(n uint, err error) {
		app.Logger.Warn().Err(err).Uint("attempt", n+1).Msg("Fulfillment delivery failed, retrying")
	}

	httpClient := &http.Client{
		Timeout:   workerCfg.DeliverTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	deliverer := fulfillment.NewHTTPDeliverer(httpClient, endpoints, retryCfg, app.Metrics)

	// --- Stream consumer ---
	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.FulfillmentStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group (may already exist)")
	}

	relay := fulfillment.NewRelay(
		consumer,
		infraRedis.NewStreamProducer(app.Redis),
		deliverer,
		func(recordID string) fulfillment.Lock {
			return infraRedis.NewDistributedLock(app.Redis, "fulfillment:"+recordID, workerCfg.LockTTL)
		},
		fulfillment.RelayConfig{
			ClaimInterval: workerCfg.ClaimInterval,
			ClaimMinIdle:  workerCfg.ClaimMinIdle,
		},
		app.Logger,
		app.Metrics,
	)

	app.Logger.Info().
		Str("stream", infraRedis.FulfillmentStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
