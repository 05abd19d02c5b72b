package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/hairizuan-noorazman/ui-harness/cmd/uiharness/handlers"
	"github.com/hairizuan-noorazman/ui-harness/harness"
	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/metrics"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded runs over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, settings, err := harness.LoadSettings(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				settings.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				settings.Server.Port = port
			}

			ctx := context.Background()
			log := logger.NewLogrusLogger(settings.Logging.Level)
			log.Info(ctx, "starting report server", map[string]interface{}{
				"version": Version,
				"commit":  Commit,
				"date":    BuildDate,
			})

			h, err := openHistory(settings, log)
			if err != nil {
				return err
			}
			defer h.Close()

			blobs, err := openBlobs(ctx, settings)
			if err != nil {
				return err
			}

			router, err := newRouter(h, blobs, log)
			if err != nil {
				return err
			}

			addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
			server := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 60 * time.Second,
			}

			go func() {
				log.Info(ctx, "server listening", map[string]interface{}{
					"address": addr,
				})
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error(ctx, "server error", map[string]interface{}{
						"error": err.Error(),
					})
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info(ctx, "shutting down server", nil)

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			log.Info(ctx, "server stopped", nil)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from server.port)")
	return cmd
}

func newRouter(h *history, blobs storage.BlobStorage, log logger.Logger) (*mux.Router, error) {
	sqlDB, err := h.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return nil, err
	}
	if err := m.WatchHistory(h.lastRuns); err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Use(handlers.RequestLogger(log))

	router.HandleFunc("/health", handlers.HealthHandler(sqlDB)).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	handlers.NewRunHandler(h.runs, h.steps, h.assets, blobs, log).Routes(router)
	return router, nil
}
