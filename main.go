package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webping/internal/config"
	"webping/internal/handlers"
	"webping/internal/metrics"
	"webping/internal/notify"
	"webping/internal/store"
	"webping/internal/vapid"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--generate-vapid-keys" {
		if err := vapid.Run(os.Args[2:], os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.NewLogger(os.Stdout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database ready", slog.String("driver", db.DriverName()))

	m := metrics.New()

	var (
		svcOpts     = []notify.Option{notify.WithMetrics(m), notify.WithLogger(log)}
		handlerOpts = []handlers.Option{handlers.WithMetrics(m), handlers.WithLogger(log)}
	)
	if cfg.RedisURL != "" {
		rdb, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()

		svcOpts = append(svcOpts, notify.WithActivity(rdb))
		handlerOpts = append(handlerOpts,
			handlers.WithActivity(rdb),
			handlers.WithRateLimit(rdb, cfg.SendRateLimit),
		)
		log.Info("redis connected, activity feed and rate limiting enabled")
	} else {
		log.Info("REDIS_URL not set, activity feed and rate limiting disabled")
	}

	keys := notify.VAPID{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
		TTL:        cfg.VAPIDTTL,
	}
	if !keys.Configured() {
		log.Warn("VAPID keys not configured, push notifications run in demo mode; generate keys with --generate-vapid-keys")
	}

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}

	svc := notify.NewService(
		notify.NewResolver(db),
		notify.NewDispatcher(notify.NewWebPush(keys, nil, log), m, log),
		mailer,
		svcOpts...,
	)

	secret, err := sessionSecret(cfg, log)
	if err != nil {
		return err
	}
	sessions := handlers.NewSessionStore(secret, false)

	h := handlers.NewHandler(db, svc, keys, sessions, handlerOpts...)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           h.Routes(cfg.StaticDir),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
	}
	return nil
}

func newMailer(cfg config.Config, log *slog.Logger) (notify.Mailer, error) {
	switch cfg.EmailProvider {
	case config.EmailProviderPostmark:
		return notify.NewPostmarkMailer(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.EmailFrom)
	case config.EmailProviderResend:
		return notify.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom)
	default:
		log.Info("EMAIL_PROVIDER is log, emails are written to the log only")
		return notify.NewLogMailer(log), nil
	}
}

// sessionSecret returns SESSION_SECRET, or a random key when it is unset.
// Random keys log everyone out on restart.
func sessionSecret(cfg config.Config, log *slog.Logger) ([]byte, error) {
	if cfg.SessionSecret != "" {
		return []byte(cfg.SessionSecret), nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	log.Warn("SESSION_SECRET not set, using a random key")
	return key, nil
}
