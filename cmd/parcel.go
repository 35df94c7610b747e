package main

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var parcelCmd = &cobra.Command{
	Use:   "parcel <id>",
	Short: "Show a parcel with its buildings, owners and market context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid parcel id %q", args[0])
		}

		if err := cfg.Validate("query"); err != nil {
			return err
		}

		store, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := queryTimeout(cmd.Context())
		defer cancel()

		detail, err := store.GetParcelDetail(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(detail)
	},
}

func init() {
	rootCmd.AddCommand(parcelCmd)
}
