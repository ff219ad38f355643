package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/api"
	"fintrack/internal/auth"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/manager"
	"fintrack/internal/server"
	"fintrack/internal/store"
)

func main() {
	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	baseHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	logger := log.New(log.Config{Component: log.ComponentApp, Handler: baseHandler})
	log.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("Failed to open local store", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer st.Close()

	oauthCfg, err := auth.OAuthConfig(cfg.OAuthClientJSON, cfg.OAuthClientFile)
	if err != nil {
		logger.Error("OAuth client credentials missing", log.FieldError, err.Error())
		os.Exit(1)
	}
	tokens, err := auth.TokenSource(ctx, oauthCfg, cfg.OAuthTokenFile)
	if err != nil {
		logger.Error("No usable OAuth token; run auth-init first",
			log.FieldError, err.Error())
		os.Exit(1)
	}

	// The API client keeps the plain logger: its records must not route
	// through a shipper that posts back through this same client.
	client := api.NewClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.APIRateLimit,
		Tokens:    tokens,
		Logger:    logger.WithComponent(log.ComponentAPI),
	})

	shipper := setupShipper(ctx, cfg, client, logger)
	if shipper != nil {
		logger = log.New(log.Config{
			Component: log.ComponentApp,
			Handler:   log.NewShippingHandler(baseHandler, shipper),
		})
		log.SetDefault(logger)
	}

	authenticator := auth.NewAuthenticator(tokens, client, st, logger)
	identity, err := authenticator.Init(ctx)
	if err != nil {
		logger.Error("Authentication failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	client.SetUserID(identity.UserID)
	if shipper != nil {
		shipper.SetUser(identity.UserID)
	}

	m := manager.New(client, st, logger)
	m.SetInitialRows(cfg.PageSize)
	if err := m.LoadWallets(ctx); err != nil {
		// The dashboard still starts; the banner carries the failure and a
		// refresh retries it.
		logger.Warn("Initial wallet load failed", log.FieldError, err.Error())
	} else if err := m.RestoreSelection(ctx); err != nil {
		logger.Warn("Could not restore wallet selection", log.FieldError, err.Error())
	}

	srv := server.NewServer(":"+cfg.Port, m, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := m.RememberSelection(shutdownCtx); err != nil {
			logger.Warn("Could not persist wallet selection", log.FieldError, err.Error())
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting fintrack dashboard",
		"port", cfg.Port,
		"backend_url", cfg.APIBaseURL,
		log.FieldUserID, identity.UserID)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Stopped gracefully")
}

// setupShipper wires the configured remote log sink and starts the flush
// loop. Returns nil when remote logging is disabled.
func setupShipper(ctx context.Context, cfg *config.Config, client *api.Client, logger *log.Logger) *log.Shipper {
	var sink log.Sink
	switch cfg.LogSink {
	case config.LogSinkHTTP:
		sink = client
	case config.LogSinkAMQP:
		amqpSink, err := log.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP log sink unavailable, remote logging disabled",
				log.FieldError, err.Error())
			return nil
		}
		sink = amqpSink
	default:
		return nil
	}

	shipper := log.NewShipper(sink, log.ShipperConfig{
		BatchSize:     cfg.LogBatchSize,
		FlushInterval: cfg.LogFlushInterval,
	}, logger.WithComponent(log.ComponentShipper).Logger)

	go shipper.Run(ctx)
	return shipper
}
