package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/accountsync-cli/internal/source"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import addresses from CSV or XLSX into the sync queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addresses, err := source.ReadImportFile(importFilePath)
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		added, err := source.AppendToQueue(cfg.Sync.QueuePath, addresses)
		if err != nil {
			return eris.Wrap(err, "append to queue")
		}

		zap.L().Info("import complete",
			zap.Int("read", len(addresses)),
			zap.Int("added", added),
			zap.String("file", importFilePath),
			zap.String("queue", cfg.Sync.QueuePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
