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

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/folio-sh/folio/config"
	foliohttp "github.com/folio-sh/folio/http"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the browser-facing gateway",
	Long: `Start the gateway that fronts the API for browsers: /api/proxy/*
forwards to the configured upstream API, and /api/blob streams objects
from allow-listed storage endpoints.`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().Int("gateway-port", 3000, "gateway listen port")
	gatewayCmd.Flags().String("base-url", "", "upstream API base URL (env: FOLIO_GATEWAY_BASE_URL)")

	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	var resolver foliohttp.BaseURLResolver
	switch {
	case cfg.Gateway.BaseURL != "":
		resolver = foliohttp.StaticBaseURLResolver{URL: cfg.Gateway.BaseURL}
	case cfg.Gateway.BaseURLFile != "":
		resolver = foliohttp.FileBaseURLResolver{Path: cfg.Gateway.BaseURLFile}
	default:
		return fmt.Errorf("gateway: either base_url or base_url_file must be set")
	}

	r := chi.NewRouter()
	r.Handle("/api/proxy/*", foliohttp.NewReverseProxy(resolver))
	r.Handle("/api/blob", foliohttp.NewBlobProxy(cfg.Gateway.BlobAllowedUpstreams))

	addr := fmt.Sprintf(":%d", cfg.Gateway.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down gateway...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("gateway shutdown error", "err", err)
		}
		cancel()
	}()

	slog.Info("starting gateway", "addr", addr, "blob_upstreams", len(cfg.Gateway.BlobAllowedUpstreams))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway error: %w", err)
	}

	return nil
}
