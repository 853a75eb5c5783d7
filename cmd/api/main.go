package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/consentlab/consent-backend/api/routes"
	"github.com/consentlab/consent-backend/internal/consents"
	"github.com/consentlab/consent-backend/internal/purposes"
	"github.com/consentlab/consent-backend/pkg/config"
	"github.com/consentlab/consent-backend/pkg/db"
	"github.com/consentlab/consent-backend/pkg/logger"
	"github.com/consentlab/consent-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	purposeRepo := purposes.NewRepository(dbClient.DB())

	purposeService, err := purposes.NewService(purposeRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create purpose service", err)
		os.Exit(1)
	}

	consentService, err := consents.NewService(consents.NewRepository(dbClient.DB()), purposeRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create consent service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(logg, purposeService, consentService, prometheus.NewRegistry()),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
