package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"recipedia/internal/catalog"
	"recipedia/internal/config"
	"recipedia/internal/db"
	"recipedia/internal/jobs"
	clog "recipedia/internal/log"
	"recipedia/internal/mail"
	"recipedia/internal/server"
	"recipedia/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志，随后交给 run 启动服务直到收到退出信号。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	var cache catalog.Cache = catalog.NopCache{}
	if cfg.RedisAddr != "" {
		rc := catalog.NewRedisCache(cfg.RedisAddr)
		defer rc.Close()
		cache = rc
	}
	cat := catalog.New(cfg.CatalogBaseURL,
		time.Duration(cfg.CatalogTimeoutSeconds)*time.Second,
		cache,
		time.Duration(cfg.CatalogCacheTTLMinutes)*time.Minute)

	hub := ws.NewHub()
	defer hub.Close()

	sweeper, err := jobs.NewSweeper(gdb, cfg.SweepSchedule)
	if err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	svc := server.NewServices(cfg, gdb, hub, cat, mail.New(cfg))
	r, stopRouter := server.SetupRouter(cfg, gdb, hub, svc)
	defer stopRouter()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// websocket 连接已被劫持，Shutdown 不会等待它们；hub.Close 由 defer 负责
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	return nil
}
