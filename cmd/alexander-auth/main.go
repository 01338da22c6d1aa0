// Package main is the entry point for the Alexander Auth server.
// Alexander Auth registers accounts behind an emailed one-time passcode and
// exchanges credentials for signed bearer tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/alexander-auth/internal/config"
	"github.com/prn-tf/alexander-auth/internal/database"
	"github.com/prn-tf/alexander-auth/internal/handler"
	"github.com/prn-tf/alexander-auth/internal/lock"
	"github.com/prn-tf/alexander-auth/internal/logging"
	"github.com/prn-tf/alexander-auth/internal/metrics"
	"github.com/prn-tf/alexander-auth/internal/notify"
	"github.com/prn-tf/alexander-auth/internal/service"
	"github.com/prn-tf/alexander-auth/internal/token"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to the configuration file")
	showVersion := pflag.BoolP("version", "v", false, "print version information and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("Alexander Auth %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "alexander-auth: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Alexander Auth")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Credential store
	store, err := database.Open(ctx, cfg.Database, cfg.Database.AutoMigrate, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	// Metrics
	var m *metrics.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		m = metrics.NewMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	// Token issuer
	issuer, err := token.NewIssuer(token.Config{
		Secret: []byte(cfg.Auth.TokenSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.TokenIssuer,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	// Mail
	sender, err := newSender(cfg, logger)
	if err != nil {
		return err
	}

	accounts, err := service.NewAccountService(store.Repositories, sender, issuer, m, logger, service.AccountConfigFrom(cfg))
	if err != nil {
		return fmt.Errorf("failed to create account service: %w", err)
	}

	// Expired OTP sweeper
	var sweeper *service.OTPSweeper
	if cfg.Sweeper.Enabled {
		locker, closeLocker, err := newLocker(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeLocker()

		sweeper = service.NewOTPSweeper(store.OTP, locker, m, logger, service.SweeperConfig{
			Interval:  cfg.Sweeper.Interval,
			BatchSize: cfg.Sweeper.BatchSize,
		})
		sweeper.Start()
	}

	router := handler.NewRouter(handler.RouterConfig{
		Accounts:     accounts,
		Health:       store.Database,
		Metrics:      m,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodySize,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if metricsServer != nil {
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Str("path", cfg.Metrics.Path).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown failed")
		}
	}
	if sweeper != nil {
		sweeper.Stop()
	}

	logger.Info().Msg("server stopped")
	return runErr
}

// newSender selects SMTP delivery when enabled and log delivery otherwise.
func newSender(cfg *config.Config, logger zerolog.Logger) (notify.Sender, error) {
	if !cfg.SMTP.Enabled {
		logger.Warn().Msg("SMTP disabled; OTP codes will be written to the log")
		return notify.NewLogSender(logger), nil
	}
	sender, err := notify.NewSMTPSender(cfg.SMTP, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP sender: %w", err)
	}
	return sender, nil
}

// newLocker selects a Redis locker when Redis is enabled so that only one
// instance sweeps at a time, and a process-local locker otherwise.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		l := lock.NewMemoryLocker()
		return l, l.Stop, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using Redis for sweeper coordination")
	return lock.NewRedisLocker(client, "alexander-auth:"), func() { _ = client.Close() }, nil
}
