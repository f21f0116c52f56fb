package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	syncer "github.com/sells-group/accountsync-cli/internal/sync"
)

var (
	syncSource   string
	syncWatch    bool
	syncInterval int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile queued addresses against the CRM",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		src, err := e.sourceFor(syncSource)
		if err != nil {
			return err
		}

		if syncWatch {
			interval := time.Duration(syncInterval) * time.Second
			if syncInterval == 0 {
				interval = time.Duration(cfg.Sync.IntervalSecs) * time.Second
			}
			sched := syncer.NewScheduler(e.Orch, src, interval)
			zap.L().Info("watching for addresses", zap.Duration("interval", interval))
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		report, err := e.Orch.RunPass(ctx, src)
		if err != nil {
			return err
		}
		zap.L().Info("pass complete",
			zap.Int("total", report.Total),
			zap.Int("committed", report.Committed),
			zap.Int("skipped", report.Skipped),
			zap.Int("failed", report.Failed),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSource, "source", "file", "address source: file or crm")
	syncCmd.Flags().BoolVar(&syncWatch, "watch", false, "keep running, re-syncing on an interval")
	syncCmd.Flags().IntVar(&syncInterval, "interval", 0, "watch interval in seconds (default from config)")
	rootCmd.AddCommand(syncCmd)
}
