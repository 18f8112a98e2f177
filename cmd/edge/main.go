package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lastbrain/edge/internal/logging"
	"github.com/lastbrain/edge/internal/server"
	"github.com/lastbrain/edge/internal/upstream"
)

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("EDGE_LOG_LEVEL"), os.Getenv("EDGE_LOG_FORMAT"))

	port := os.Getenv("EDGE_PORT")
	if port == "" {
		port = "8080"
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:3000"
	}

	prefix := os.Getenv("EDGE_PROTECTED_PREFIX")
	if prefix == "" {
		prefix = "/private"
	}

	cookieDays := 0.0
	if v := os.Getenv("AFF_COOKIE_DAYS"); v != "" {
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			cookieDays = d
		}
	}

	cfg := server.Config{
		AppURL: appURL,
		Upstream: upstream.Config{
			BaseURL: os.Getenv("API_URL"),
			Token:   os.Getenv("X_LASTBRAIN_TOKEN"),
		},
		TokenSecret:     os.Getenv("AFF_TOKEN_SECRET"),
		ProtectedPrefix: prefix,
		CookieDays:      cookieDays,
		Production:      os.Getenv("EDGE_ENV") == "production",
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("edge starting", "addr", ":"+port, "app", appURL, "production", cfg.Production)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
