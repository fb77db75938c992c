package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	kogu "github.com/nguyen10t2/IT3180-20251-Group-6-sub001"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/httpapi"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/notify"
	"github.com/nguyen10t2/IT3180-20251-Group-6-sub001/store/sqlite"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg Config) error {
	logger, err := cfg.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engineCfg, err := cfg.engineConfig()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	engine, err := kogu.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithUserProvider(store).
		WithAuditSink(kogu.NewJSONWriterSink(os.Stdout)).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	server := httpapi.NewServer(engine, store, notify.NewLogMailer(logger), logger, httpapi.Options{
		RefreshCookieTTL: cfg.RefreshTTL,
		SecureCookies:    cfg.SecureCookies,
		ExposeMetrics:    cfg.ExposeMetrics,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}
