package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cassiomorais/billingbridge/internal/billing"
	"github.com/cassiomorais/billingbridge/internal/bootstrap"
	"github.com/cassiomorais/billingbridge/internal/controller"
	"github.com/cassiomorais/billingbridge/internal/fulfillment"
	infraRedis "github.com/cassiomorais/billingbridge/internal/infrastructure/redis"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "billingbridge-api", "billingbridge")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Billing services ---
	registry, err := bootstrap.NewRegistry(&app.Config.Billing, app.Logger, app.Metrics)
	if err != nil {
		app.Logger.Fatal().Err(err).Msg("Failed to configure billing apps")
	}

	// Completed checkouts are queued for the worker.
	producer := infraRedis.NewStreamProducer(app.Redis)
	handlers := make(map[string]billing.FulfillmentHandler, len(app.Config.Billing.Apps))
	urls := make(map[string]controller.AppURLs, len(app.Config.Billing.Apps))
	for _, a := range app.Config.Billing.Apps {
		handlers[a.Name] = fulfillment.NewStreamHandler(a.Name, producer)
		urls[a.Name] = controller.AppURLs{SuccessURL: a.SuccessURL, CancelURL: a.CancelURL}
	}

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Redis:          app.Redis,
		Registry:       registry,
		Handlers:       func(name string) billing.FulfillmentHandler { return handlers[name] },
		AppURLs:        urls,
		Metrics:        app.Metrics,
		CORSConfig:     app.Config.Server.CORS,
		JWTSecret:      app.Config.Auth.JWTSecret,
		RateLimit:      app.Config.Server.RateLimit,
		BodyLimit:      app.Config.Billing.WebhookBodyLimit,
		RequestTimeout: app.Config.Server.RequestTimeout,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Strs("apps", registry.Apps()).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
