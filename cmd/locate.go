package main

import (
	"github.com/spf13/cobra"

	"github.com/gurs-tools/kataster-cli/internal/assemble"
	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/spatial"
)

var locateFlags struct {
	lng      float64
	lat      float64
	geometry bool
}

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve a WGS84 point to the parcel containing it",
	Example: `  kataster-cli locate --lng 14.5058 --lat 46.0569`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		res, err := spatial.New(store, cfg.Spatial).Resolve(ctx, cadastre.PointQuery{
			Longitude: locateFlags.lng,
			Latitude:  locateFlags.lat,
		})
		if err != nil {
			return err
		}

		resp := assemble.New(cfg.Match.MaxResults).FromResolution(res)
		if !locateFlags.geometry {
			resp.Geometry = nil
		}
		return printJSON(resp)
	},
}

func init() {
	locateCmd.Flags().Float64Var(&locateFlags.lng, "lng", 0, "longitude (WGS84)")
	locateCmd.Flags().Float64Var(&locateFlags.lat, "lat", 0, "latitude (WGS84)")
	locateCmd.Flags().BoolVar(&locateFlags.geometry, "geometry", false, "include parcel boundary as GeoJSON")
	_ = locateCmd.MarkFlagRequired("lng")
	_ = locateCmd.MarkFlagRequired("lat")
	rootCmd.AddCommand(locateCmd)
}
