package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/config"
	"github.com/gurs-tools/kataster-cli/internal/match"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kataster-cli",
	Short: "Cadastral parcel matching over GURS registry data",
	Long:  "Matches real-estate listings and map points to cadastral parcels: fuzzy attribute scoring, point-to-parcel resolution, registry export imports and an HTTP API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if err := match.ValidateConfig(cfg.Match); err != nil {
			return err
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
