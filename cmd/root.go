package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dispatch-console/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dispatch-console",
	Short: "Disaster-response dispatch map console",
	Long:  "Serves the interactive dispatch map: loads shelters, rescue teams and victims from the rescue backend, colors wards by density, assigns teams and broadcasts area alerts.",
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
