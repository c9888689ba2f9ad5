// main.go - Entry point for the CIMA backend server

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cima-backend/auth"
	"cima-backend/config"
	"cima-backend/database"
	"cima-backend/handlers"
	"cima-backend/logging"
	"cima-backend/mailer"
	"cima-backend/metrics"
	"cima-backend/mqtt"
	"cima-backend/notify"
	"cima-backend/realtime"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// STEP 1: Load configuration
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("could not read .env file")
	}
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// STEP 2: Open the store and bootstrap the admin account
	db, err := database.Connect(cfg.DBPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database connection failed")
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logging.Error().Err(err).Msg("database close failed")
		}
	}()
	if cfg.CreateAdmin {
		seed := database.AdminSeed{Name: cfg.AdminName, Email: cfg.AdminEmail, Password: cfg.AdminPassword}
		if err := database.EnsureAdmin(ctx, db, seed); err != nil {
			logging.Fatal().Err(err).Msg("admin bootstrap failed")
		}
	}

	// STEP 3: Notification channels
	hub := realtime.NewHub()
	hub.OnCountChange = func(n int) { metrics.RealtimeSubscribers.Set(float64(n)) }
	go func() { _ = hub.RunWithContext(ctx) }()

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.MailEnabled() {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			StartTLS: cfg.SMTPTLS,
		})
	} else {
		logging.Warn().Msg("SMTP_HOST not set, emails are only logged")
	}

	opts := notify.Options{
		Timeout:      cfg.MailTimeout,
		DashboardURL: cfg.FrontendURL + "/report",
		BridgeTopic:  cfg.MQTTTopic,
	}
	if cfg.MQTTBroker != "" {
		bridge, err := mqtt.Connect(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			// The bridge is optional; the API keeps serving without it.
			logging.Error().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT bridge disabled")
		} else {
			defer bridge.Close()
			opts.Bridge = bridge
		}
	}

	users := database.NewUserStore(db)
	dispatcher := notify.New(hub, users, sender, opts)

	// STEP 4: HTTP server
	h := &handlers.Handler{
		DB:          db,
		Reports:     database.NewReportStore(db),
		Users:       users,
		Tokens:      auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL),
		Mailer:      sender,
		Notifier:    dispatcher,
		Hub:         hub,
		FrontendURL: cfg.FrontendURL,
		MailTimeout: cfg.MailTimeout,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.SetupRouter(h, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Bool("mail", cfg.MailEnabled()).Bool("mqtt", opts.Bridge != nil).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	// STEP 5: Graceful shutdown
	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	hub.Close() // ends open SSE and WebSocket streams so Shutdown can finish
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("pending notifications abandoned")
	}
}
