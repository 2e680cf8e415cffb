package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ianpcook/agent-crm/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agent-crm",
	Short: "Turn emails, notes and call summaries into reviewable CRM plans",
	Long:  "Extracts contacts, deal signals, interactions and follow-up tasks from prose, stores the plans for review and applies accepted actions to the local CRM or Salesforce.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
