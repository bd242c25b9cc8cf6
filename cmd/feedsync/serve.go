package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amiyamandal-dev/feedsync/internal/api"
	"github.com/amiyamandal-dev/feedsync/internal/api/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the periodic sync loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		defer a.Close()

		cfg, log := a.cfg, a.log
		log.Info("Starting feedsync server", "version", version, "mode", cfg.Server.Mode)

		router := api.NewRouter(
			handlers.NewFeedHandler(a.feeds, a.syncer, log),
			handlers.NewItemHandler(a.feeds, log),
			handlers.NewSearchHandler(a.search, log),
			handlers.NewHealthHandler(a.store, a.index, a.pool, log),
			cfg,
			log,
		)

		server := &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router.Setup(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		syncDone := make(chan struct{})
		go func() {
			defer close(syncDone)
			a.syncer.Start(ctx, cfg.Sync.Interval, cfg.Sync.OnStart)
		}()

		serveErr := make(chan error, 1)
		go func() {
			log.Info("HTTP server starting", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case <-ctx.Done():
			log.Info("Shutting down server...")
		case err := <-serveErr:
			log.Error("Server failed", "error", err)
			stop()
			a.syncer.Stop()
			<-syncDone
			return err
		}

		a.syncer.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", "error", err)
		}
		<-syncDone

		log.Info("Server stopped gracefully")
		return nil
	},
}
