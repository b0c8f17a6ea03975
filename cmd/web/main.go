// Package main is the entrypoint for the ShareTaxi web server.
package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sharetaxi/sharetaxi/internal/authclient"
	"github.com/sharetaxi/sharetaxi/internal/cache"
	"github.com/sharetaxi/sharetaxi/internal/config"
	"github.com/sharetaxi/sharetaxi/internal/handler"
	"github.com/sharetaxi/sharetaxi/internal/httpclient"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/realtime"
	"github.com/sharetaxi/sharetaxi/internal/repository"
	"github.com/sharetaxi/sharetaxi/internal/server"
	"github.com/sharetaxi/sharetaxi/internal/service"
	"github.com/sharetaxi/sharetaxi/internal/session"
	"github.com/sharetaxi/sharetaxi/internal/twilio"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
		MaxStreams:   cfg.RedisMaxStreams,
	})
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("redis unavailable")
	}
	logger.Info("connected to Redis")

	renderer, err := web.NewRenderer()
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return err
	}

	recorder := metrics.NewInMemory()
	httpClient := httpclient.New()

	// Session provider and login flow
	var (
		provider      session.Provider
		authenticator handler.Authenticator
	)
	switch cfg.AuthProvider {
	case config.AuthProviderGoTrue:
		client := authclient.New(cfg.GoTrueURL, cfg.GoTrueAnonKey, httpClient)
		gotrue := service.NewGoTrueAuth(client, repo, logger)
		provider = gotrue
		authenticator = gotrue
	default:
		otp := service.NewOTPService(cacheClient, verifyProvider(cfg, httpClient), smsSender(cfg, httpClient, logger), service.OTPConfig{
			TTL:         cfg.OTPTTL,
			MaxAttempts: cfg.OTPMaxAttempts,
			SendLimit:   cfg.OTPSendLimit,
			SendWindow:  cfg.OTPSendWindow,
		}, logger, recorder)
		authService := service.NewAuthService(repo, repo, cacheClient, otp, cfg.SessionTTL, logger)
		provider = authService
		authenticator = authService
	}

	resolver := session.NewResolver(provider, session.Options{
		SessionCookie: cfg.SessionCookieName,
		MockCookie:    cfg.MockSessionCookie,
		MockEnabled:   cfg.MockSessionEnabled,
	}, logger, recorder)

	chatService := service.NewChatService(repo, repo, cacheClient, logger, recorder)
	profileService := service.NewProfileService(repo, repo, cacheClient, logger)

	originCheck := middleware.NewOriginChecker(cfg.GetWebSocketAllowedOrigins())
	hub := realtime.NewHub(cacheClient, originCheck, logger)

	h := handler.New(renderer, logger)
	healthHandler := handler.NewHealthHandler(repo, cacheClient, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)
	authHandler := handler.NewAuthHandler(authenticator, handler.CookieConfig{
		SessionName: cfg.SessionCookieName,
		MockName:    cfg.MockSessionCookie,
		MockEnabled: cfg.MockSessionEnabled,
		Secure:      !cfg.IsDevelopment(),
	}, renderer, logger)
	chatHandler := handler.NewChatHandler(chatService, hub, renderer, logger, recorder)
	accountHandler := handler.NewAccountHandler(profileService, renderer, logger)

	r := setupRouter(routes{
		base:     h,
		health:   healthHandler,
		metrics:  metricsHandler,
		auth:     authHandler,
		chat:     chatHandler,
		account:  accountHandler,
		resolver: resolver,
		limiter:  cacheClient,
		origin:   originCheck,
		recorder: recorder,
	}, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: the hub stops first, then Redis, then Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("realtime hub", hub.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"auth_provider", cfg.AuthProvider,
		"mock_sessions", cfg.MockSessionEnabled,
	)

	return srv.Run(ctx)
}

// verifyProvider returns Twilio Verify when configured. The explicit nil
// keeps a nil *twilio.Client out of the interface.
func verifyProvider(cfg *config.Config, httpClient *http.Client) service.VerifyProvider {
	if !cfg.TwilioVerifyEnabled() {
		return nil
	}
	return twilio.New(twilioConfig(cfg), httpClient)
}

func smsSender(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) service.SMSSender {
	if cfg.TwilioSMSEnabled() {
		return twilio.New(twilioConfig(cfg), httpClient)
	}
	if !cfg.IsDevelopment() {
		logger.Warn("no SMS provider configured, OTP codes will not be delivered")
		return service.LogSMSSender{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	}
	return service.LogSMSSender{Logger: logger}
}

func twilioConfig(cfg *config.Config) twilio.Config {
	return twilio.Config{
		AccountSID:       cfg.TwilioAccountSID,
		AuthToken:        cfg.TwilioAuthToken,
		VerifyServiceSID: cfg.TwilioVerifyServiceSID,
		FromNumber:       cfg.TwilioFromNumber,
		BaseURL:          cfg.TwilioBaseURL,
		VerifyBaseURL:    cfg.TwilioVerifyBaseURL,
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
