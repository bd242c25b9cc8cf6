package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize every feed once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.log.Sync()
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.syncer.SyncAll(ctx); err != nil {
			a.log.Warn("Synchronization finished with errors", "error", err)
			return err
		}

		for _, st := range a.feeds.List(ctx) {
			a.log.Info("Feed", "name", st.Name, "kind", st.Kind, "items", st.ItemCount)
		}
		return nil
	},
}
