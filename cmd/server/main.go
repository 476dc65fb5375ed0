package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/roundtable/internal/analytics"
	"github.com/mmynk/roundtable/internal/auth"
	"github.com/mmynk/roundtable/internal/cache"
	"github.com/mmynk/roundtable/internal/config"
	"github.com/mmynk/roundtable/internal/metrics"
	"github.com/mmynk/roundtable/internal/server"
	"github.com/mmynk/roundtable/internal/service"
	"github.com/mmynk/roundtable/internal/storage/sqlite"
	"github.com/mmynk/roundtable/internal/strategy"
	"github.com/mmynk/roundtable/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	coordinator := strategy.NewCoordinator()
	m := metrics.New(nil)
	analyticsService := analytics.NewService(store, cache.New())
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)

	authService := service.NewAuthService(store, jwtManager)
	groupService := service.NewGroupService(store)
	turnService := service.NewTurnService(store, coordinator, analyticsService, m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go turnService.StartExpiryScheduler(ctx, cfg.ExpiryInterval)

	srv := server.New(authService, groupService, turnService, analyticsService, coordinator, jwtManager)

	// h2c allows HTTP/2 without TLS behind a terminating proxy.
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h2c.NewHandler(srv.Router(), &http2.Server{}),
	}

	go func() {
		slog.Info("Server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
