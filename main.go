package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ventas/api"
	"ventas/internal/auth"
	"ventas/internal/config"
	"ventas/internal/logging"
	"ventas/internal/sales"
	"ventas/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Errorf("invalid configuration: %w", err))
	}

	logger, err := logging.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	defer logger.Sync()

	if cfg.SecretKeyGenerated {
		logger.Warn("SECRET_KEY not set, using a random key: sessions end on restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open ledger store", zap.Error(err))
	}
	defer store.Close()

	categories := sales.DefaultVocabulary()
	if len(cfg.Categories) > 0 {
		if categories, err = sales.NewVocabulary(cfg.Categories...); err != nil {
			logger.Fatal("invalid SALES_CATEGORIES", zap.Error(err))
		}
	}

	deps := api.Dependencies{
		Sales:         sales.NewService(store, logger, categories),
		Sessions:      auth.NewSessions(cfg.SecretKey, cfg.SessionTTL),
		Logger:        logger,
		SecureCookies: !cfg.IsDevelopment(),
	}
	if cfg.GoogleConfigured() {
		google := auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
		defer google.Close()
		deps.Provider = google
	} else {
		logger.Warn("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET not set, login is disabled")
	}

	// Amounts go out as JSON numbers, like the rest of the API's figures.
	decimal.MarshalJSONWithoutQuotes = true

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	api.InitRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.Strings("rubros", categories.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("error trying to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
