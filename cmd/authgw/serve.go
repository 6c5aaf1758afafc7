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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/logging"
	"github.com/iliyamo/tenant-auth-gateway/internal/middleware"
	"github.com/iliyamo/tenant-auth-gateway/internal/pipeline"
	"github.com/iliyamo/tenant-auth-gateway/internal/queue"
	"github.com/iliyamo/tenant-auth-gateway/internal/router"
	"github.com/iliyamo/tenant-auth-gateway/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = ":" + cfg.Port
		}
		return serve(cmd.Context(), cfg, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "address to listen on (default :$APP_PORT)")
}

func serve(ctx context.Context, cfg config.Config, addr string) error {
	rdb := config.NewRedisClient(cfg.Redis)
	opts := []pipeline.Option{pipeline.WithLogger(logging.Component("auth"))}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		opts = append(opts, pipeline.WithStore(store.NewRedis(rdb,
			store.WithPrefix(cfg.Redis.KeyPrefix),
			store.WithRedisLogger(logging.Component("redis")),
		)))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("caching records in redis")
	} else {
		log.Info().Msg("redis not configured, caching records in process")
	}

	var hook middleware.ErrorHook
	if cfg.Queue.Enabled {
		pub := queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Name, logging.Component("events"))
		defer func() { _ = pub.Close() }()
		hook = pub.Hook()
		log.Info().Str("queue", cfg.Queue.Name).Msg("publishing auth failure events")
	}

	auth, err := pipeline.New(cfg.Auth, opts...)
	if err != nil {
		return fmt.Errorf("building auth pipeline: %w", err)
	}
	defer func() { _ = auth.Close() }()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: newRequestID}))

	router.RegisterRoutes(e)
	router.RegisterAuthenticated(e, router.Deps{
		Auth:      auth,
		OnError:   hook,
		RateLimit: cfg.RateLimit,
		Redis:     rdb,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("env", cfg.Env).Msgf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server crashed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server exited")
	return nil
}
