package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/accountsync-cli/internal/model"
	"github.com/sells-group/accountsync-cli/internal/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger size and attempt history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		counts, err := e.Store.Counts(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Ledger: %d addresses reconciled (%s)\n", e.Ledger.Len(), e.Ledger.Path())
		fmt.Printf("Attempts: %d committed, %d skipped, %d failed\n",
			counts.Committed, counts.Skipped, counts.Failed)

		if statusLimit > 0 {
			attempts, err := e.Store.ListAttempts(ctx, store.AttemptFilter{Limit: statusLimit})
			if err != nil {
				return err
			}
			if len(attempts) > 0 {
				fmt.Println("\nRecent attempts:")
				for _, a := range attempts {
					fmt.Printf("  %s  %-9s  %s%s\n",
						a.FinishedAt.Format("2006-01-02 15:04:05"),
						a.Outcome, a.Address, attemptSuffix(a))
				}
			}
		}
		return nil
	},
}

func attemptSuffix(a model.Attempt) string {
	if a.RecordID != "" {
		return "  (record " + a.RecordID + ")"
	}
	return ""
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "recent", 10, "number of recent attempts to show (0 to hide)")
	rootCmd.AddCommand(statusCmd)
}
