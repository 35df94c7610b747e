package main

import (
	"github.com/spf13/cobra"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the sample Ljubljana dataset into the configured store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		writer, closeFn, err := initWriter(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		return cadastre.SeedSampleData(cmd.Context(), writer)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
