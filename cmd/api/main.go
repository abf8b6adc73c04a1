package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pet-care-tracker/internal/adapters/auth/remote"
	"pet-care-tracker/internal/adapters/notifiers"
	"pet-care-tracker/internal/adapters/notifiers/fcm"
	"pet-care-tracker/internal/config"
	"pet-care-tracker/internal/platform/httpclient"
	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/ports/auth"
	"pet-care-tracker/internal/ports/notify"
	"pet-care-tracker/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sinks opcionales de avisos
	var extra []notify.Notifier

	var webhook *notifiers.Webhook
	if cfg.NotifyWebhookURL != "" {
		webhook, err = notifiers.NewWebhook(httpclient.New(httpclient.DefaultTimeout), cfg.NotifyWebhookURL, log)
		if err != nil {
			log.Error("invalid webhook url", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		extra = append(extra, webhook)
	}

	if cfg.FCMCredentialsPath != "" {
		push, err := fcm.New(ctx, cfg.FCMCredentialsPath, cfg.FCMTopic, log)
		if err != nil {
			log.Warn("fcm disabled", map[string]any{"error": err.Error()})
		} else {
			extra = append(extra, push)
		}
	}

	// Sin AUTH_VERIFY_URL queda en modo dev
	var verifier auth.Verifier
	if cfg.AuthVerifyURL != "" {
		v, err := remote.NewVerifier(httpclient.New(httpclient.DefaultTimeout), remote.Config{
			URL:          cfg.AuthVerifyURL,
			APIKey:       cfg.AuthAPIKey,
			APIKeyHeader: cfg.AuthAPIKeyHeader,
		})
		if err != nil {
			log.Error("invalid auth verifier config", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		verifier = v
	}

	app := router.New(router.Options{
		AuthVerifier: verifier,
		Config:       cfg,
		Logger:       log,
		Notifiers:    extra,
	})
	app.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", map[string]any{"error": err.Error()})
	}
	// escrituras pendientes antes de salir
	if err := app.Close(shutdownCtx); err != nil {
		log.Error("tracker shutdown failed", map[string]any{"error": err.Error()})
	}
	if webhook != nil {
		webhook.Wait()
	}
}
