package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/gurs-tools/kataster-cli/internal/assemble"
	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/match"
)

var matchFlags struct {
	area       float64
	settlement string
	year       int
	floorArea  float64
	propType   string
	street     string
	geometry   bool
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a listing to cadastral parcels by attributes",
	Example: `  kataster-cli match --area 542 --settlement Ljubljana --year 1974 --floor-area 185.4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		store, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		q := cadastre.ListingQuery{
			Settlement:   matchFlags.settlement,
			ParcelAreaM2: matchFlags.area,
			PropertyType: matchFlags.propType,
			StreetName:   matchFlags.street,
		}
		if cmd.Flags().Changed("year") {
			q.ConstructionYear = &matchFlags.year
		}
		if cmd.Flags().Changed("floor-area") {
			q.NetFloorAreaM2 = &matchFlags.floorArea
		}

		ctx, cancel := queryTimeout(cmd.Context())
		defer cancel()

		candidates, err := match.New(store, cfg.Match).Match(ctx, q)
		if err != nil {
			return err
		}

		resp := assemble.New(cfg.Match.MaxResults).FromMatches(candidates)
		if !matchFlags.geometry {
			resp.Geometry = nil
		}
		return printJSON(resp)
	},
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	matchCmd.Flags().Float64Var(&matchFlags.area, "area", 0, "parcel area in m² (required)")
	matchCmd.Flags().StringVar(&matchFlags.settlement, "settlement", "", "settlement or municipality name")
	matchCmd.Flags().IntVar(&matchFlags.year, "year", 0, "construction year of the building")
	matchCmd.Flags().Float64Var(&matchFlags.floorArea, "floor-area", 0, "net floor area of the building in m²")
	matchCmd.Flags().StringVar(&matchFlags.propType, "type", "", "property type")
	matchCmd.Flags().StringVar(&matchFlags.street, "street", "", "street name")
	matchCmd.Flags().BoolVar(&matchFlags.geometry, "geometry", false, "include parcel boundaries as GeoJSON")
	_ = matchCmd.MarkFlagRequired("area")
	rootCmd.AddCommand(matchCmd)
}
