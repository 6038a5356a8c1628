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

	"github.com/rawblock/pixel-archives/internal/api"
	"github.com/rawblock/pixel-archives/internal/auth"
	"github.com/rawblock/pixel-archives/internal/cache"
	"github.com/rawblock/pixel-archives/internal/canvas"
	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/db"
	"github.com/rawblock/pixel-archives/internal/logging"
	"github.com/rawblock/pixel-archives/internal/nft"
	"github.com/rawblock/pixel-archives/internal/pixel"
	"github.com/rawblock/pixel-archives/internal/ratelimit"
	"github.com/rawblock/pixel-archives/internal/solana"
	"github.com/rawblock/pixel-archives/internal/ws"
)

func main() {
	logging.Configure()
	logger := logging.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Info("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		logger.Error("schema init failed", "error", err)
		os.Exit(1)
	}

	remote, err := cache.ConnectRedis(ctx, &cfg.Cache)
	if err != nil {
		logger.Error("failed to connect to cache", "error", err)
		os.Exit(1)
	}
	defer remote.Close()

	local := cache.NewLocalCache(&cfg.Cache)
	defer local.Stop()

	chain, err := solana.NewClient(&cfg.Solana)
	if err != nil {
		logger.Error("failed to initialize Solana client", "error", err)
		os.Exit(1)
	}

	jwtService := auth.NewJwtService(&cfg.JWT)
	rooms := ws.NewManager(cfg.Canvas.MaxCollaborators)

	services := &api.Services{
		Auth:   auth.NewService(store, remote, jwtService),
		Jwt:    jwtService,
		Canvas: canvas.NewService(store, local, remote, chain, rooms, cfg),
		Pixel:  pixel.NewService(store, local, remote, chain, rooms, cfg),
		Nft:    nft.NewService(store, remote, chain, rooms, cfg),
		Limiters: &ratelimit.Limiters{
			Auth:   ratelimit.NewWithWindow(remote, cfg.RateLimit.Auth, "auth"),
			Pixel:  ratelimit.NewWithWindow(remote, cfg.RateLimit.Pixel, "pixel"),
			Canvas: ratelimit.NewWithWindow(remote, cfg.RateLimit.Canvas, "canvas"),
			Solana: ratelimit.NewWithWindow(remote, cfg.RateLimit.Solana, "solana"),
		},
	}

	server := api.NewServer(cfg, services, ws.NewHandler(rooms, jwtService))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Warn("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server shutdown complete")
}
