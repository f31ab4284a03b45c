package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okvist/parley/internal/admin"
	"github.com/okvist/parley/internal/applog"
	"github.com/okvist/parley/internal/config"
	"github.com/okvist/parley/internal/group"
	"github.com/okvist/parley/internal/httpapi"
	"github.com/okvist/parley/internal/message"
	"github.com/okvist/parley/internal/storage"
	"github.com/okvist/parley/internal/user"
)

func main() {
	if err := run(); err != nil {
		applog.Error("server.run", err)
		log.Printf("fatal: server error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	storeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := storage.NewPostgresStore(storeCtx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	migrateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Migrate(migrateCtx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(ctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userService := user.NewService(store.Users(), cfg.AdminEmail)
	messageService := message.NewService(store.Messages(), userService, cfg.MessageHistoryLimit)
	groupService := group.NewService(store.Groups(), userService, messageService)
	adminService := admin.NewService(store.Users(), store.Messages(), store.Groups())
	api := httpapi.NewHandler(userService, messageService, groupService, adminService)

	mux := http.NewServeMux()
	api.Register(mux)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err = <-errCh
	case err = <-errCh:
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
