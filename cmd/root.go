package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/trailscout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "trailscout",
	Short: "Hiking trail import, search and recommendation service",
	Long:  "Imports hiking trails from OpenStreetMap and shapefiles into PostGIS, serves them as JSON and vector tiles, and ranks them against hiker preferences.",
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
