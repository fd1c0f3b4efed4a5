package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/verify-emails/internal/application/dispatch"
	"github.com/verify-emails/internal/application/registration"
	"github.com/verify-emails/internal/application/verification"
	"github.com/verify-emails/internal/application/welcome"
	"github.com/verify-emails/internal/config"
	"github.com/verify-emails/internal/infrastructure/appwrite"
	"github.com/verify-emails/internal/infrastructure/brevo"
	"github.com/verify-emails/internal/infrastructure/dynamo"
	"github.com/verify-emails/internal/infrastructure/smtp"
	"github.com/verify-emails/internal/infrastructure/sns"
	transporthttp "github.com/verify-emails/internal/transport/http"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if !cfg.ProviderConfigured() {
		slog.Warn("identity provider not configured; register and verify will report server_config")
	}
	if cfg.TokenSecret == "" {
		slog.Warn("TOKEN_SECRET not set; verification links cannot be minted or checked")
	}

	provider := appwrite.NewClient(cfg)

	mailer, err := newMailer(cfg)
	if err != nil {
		slog.Error("create mailer", "err", err)
		os.Exit(1)
	}
	welcomeSvc := welcome.NewService(cfg, mailer)

	dispatcher, err := newDispatcher(cfg, welcomeSvc)
	if err != nil {
		slog.Error("create welcome dispatcher", "err", err)
		os.Exit(1)
	}

	var verifySvc verification.Service
	if cfg.ConsumedTokensTable != "" {
		dynamoClient, err := dynamo.NewClient(cfg)
		if err != nil {
			slog.Error("create dynamo client", "err", err)
			os.Exit(1)
		}
		// Creates the ledger table if it doesn't exist.
		dynamo.Bootstrap(context.Background(), dynamoClient, cfg.ConsumedTokensTable)
		ledger := dynamo.NewConsumedTokenRepo(dynamoClient, cfg.ConsumedTokensTable)
		verifySvc = verification.NewService(cfg, provider, ledger)
		slog.Info("consumed-token ledger enabled", "table", cfg.ConsumedTokensTable)
	} else {
		verifySvc = verification.NewService(cfg, provider, nil)
	}

	deps := &transporthttp.Deps{
		Registration:      registration.NewService(cfg, provider, dispatcher),
		Welcome:           welcomeSvc,
		Verification:      verifySvc,
		VerificationEmail: verification.NewEmailService(cfg, provider),
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "welcome_mode", cfg.WelcomeMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	// Let in-flight welcome jobs finish; each is bounded by WELCOME_TIMEOUT.
	dispatcher.Wait()
	slog.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newMailer picks Brevo when an API key is set, then SMTP. A nil mailer means
// send-welcome returns the link instead of emailing it.
func newMailer(cfg *config.Config) (welcome.Mailer, error) {
	if !cfg.EmailConfigured() {
		slog.Warn("no email transport configured; send-welcome will return links instead of sending")
		return nil, nil
	}
	if cfg.BrevoAPIKey != "" {
		return brevo.NewClient(cfg), nil
	}
	m, err := smtp.NewMailer(cfg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func newDispatcher(cfg *config.Config, sender dispatch.WelcomeSender) (dispatch.Dispatcher, error) {
	switch cfg.WelcomeMode {
	case config.WelcomeModeLocal:
		return dispatch.NewLocal(sender, cfg.WelcomeTimeout), nil
	case config.WelcomeModeWebhook:
		if cfg.WelcomeEndpoint == "" {
			return nil, errors.New("WELCOME_MODE=webhook requires VERIFY_WELCOME_ENDPOINT")
		}
		return dispatch.NewWebhook(cfg.WelcomeEndpoint, cfg.WelcomeTimeout), nil
	case config.WelcomeModeSNS:
		pub, err := sns.NewPublisher(cfg)
		if err != nil {
			return nil, err
		}
		return dispatch.NewQueue(pub, cfg.WelcomeTimeout), nil
	default:
		return dispatch.Noop{}, nil
	}
}
