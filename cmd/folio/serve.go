package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/folio-sh/folio"
	"github.com/folio-sh/folio/auth"
	"github.com/folio-sh/folio/config"
	"github.com/folio-sh/folio/database"
	foliohttp "github.com/folio-sh/folio/http"
	"github.com/folio-sh/folio/objectstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the library API server",
	Long:  `Start the Folio HTTP API server.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	if err = cfg.Database.Tables.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	users, books, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB()
	slog.Info("connected to database", "type", cfg.Database.Type)

	objects, err := objectstore.NewMinioStore(cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("connect object store: %w", err)
	}
	slog.Info("connected to object store", "endpoint", cfg.ObjectStore.Endpoint, "bucket", cfg.ObjectStore.Bucket)

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHrs)*time.Hour)
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	service, err := folio.NewLibraryService(users, books, objects, auth.NewHasher(), tokens, folio.ServiceConfig{
		AdminEmail:     cfg.Auth.AdminEmail,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		PresignExpiry:  time.Duration(cfg.Presign.ExpirySeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	handlerConfig := foliohttp.HandlerConfig{
		Verifier: tokens,
	}
	handler := foliohttp.NewHandler(&handlerConfig, service)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
