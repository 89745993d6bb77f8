package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"video-uploader/config"
	"video-uploader/constant"
	"video-uploader/handler"
	"video-uploader/pkg/rabbitmq"
	"video-uploader/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := wire(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to start")
		return
	}
	defer app.close(ctx)
	applyDebugOutput(app.settings.DebugOutput())

	feed := rabbitmq.NewChangeFeed(app.conn, cfg.Queue, app.repo)
	sessionSync := service.NewSessionSync(app.session, app.store, feed)
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		if err := sessionSync.Run(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("session sync stopped")
		}
	}()

	h := handler.New(ctx, handler.Dependencies{
		Uploads:  app.uploads,
		Store:    app.store,
		Session:  app.session,
		Settings: app.settings,
		Sync:     sessionSync,
	})

	r := gin.Default()
	h.Register(r)

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Str("port", cfg.Server.HttpPort).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}
	h.Wait()
	<-syncDone

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}

// applyDebugOutput raises the level when the persisted setting asks for it.
func applyDebugOutput(enabled bool) {
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
