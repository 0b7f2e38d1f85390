package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lehigh-university-libraries/siteobserver/internal/analysis"
	"github.com/lehigh-university-libraries/siteobserver/internal/config"
	"github.com/lehigh-university-libraries/siteobserver/internal/gateway"
	"github.com/lehigh-university-libraries/siteobserver/internal/handlers"
	"github.com/lehigh-university-libraries/siteobserver/internal/imaging"
	"github.com/lehigh-university-libraries/siteobserver/internal/prompts"
	"github.com/lehigh-university-libraries/siteobserver/internal/storage"
	"github.com/spf13/cobra"
)

// newService wires the analysis pipeline from configuration
func newService(cfg *config.Config) (*analysis.Service, *gateway.Gateway, error) {
	gw, err := gateway.FromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	svc := analysis.NewService(
		imaging.NewNormalizer(cfg.TempDir, cfg.MaxDimension, cfg.MaxPixels),
		prompts.New(cfg.SafetyHints),
		gw,
		storage.New(),
	)
	return svc, gw, nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		Long: `Starts the SiteObserver HTTP API.

Endpoints:
  POST   /api/analyze               upload an image (field "image") and optional "keyword"
  POST   /api/chat                  ask a follow-up question about an analyzed image
  DELETE /api/session/{session_id}  end a session and remove its image
  GET    /health                    liveness check`,
		Example: `  # Start server on default port 8000
  siteobserver serve

  # Start server on custom port with a config file
  siteobserver serve --port 9000 --config siteobserver.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, func(c *config.Config) {
				if cmd.Flags().Changed("port") {
					c.Port = port
				}
			})
			if err != nil {
				return err
			}

			svc, gw, err := newService(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := svc.Close(); err != nil {
					slog.Error("Unable to release sessions", "err", err)
				}
			}()

			handler := handlers.New(svc, cfg.MaxUploadBytes)

			addr := ":" + strconv.Itoa(cfg.Port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(cfg.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("SiteObserver API available",
					"addr", addr,
					"url", "http://localhost"+addr,
					"provider", gw.Provider(),
					"model", gw.Model(),
					"temp_dir", cfg.TempDir)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "Port to listen on (overrides PORT)")

	return cmd
}
