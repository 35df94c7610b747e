package match

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/gurs-tools/kataster-cli/internal/config"
)

// WeightSum returns the maximum normalization base: the weight sum when
// every attribute is present on both sides.
func WeightSum(c config.MatchConfig) float64 {
	return c.AreaWeight + c.YearWeight + c.BuildingAreaWeight +
		c.SettlementWeight + c.StreetWeight + c.PropertyTypeWeight
}

// ValidateConfig checks that a MatchConfig is internally consistent. Run
// once at startup; scoring assumes a validated config.
func ValidateConfig(c config.MatchConfig) error {
	var errs []string

	weights := map[string]float64{
		"area_weight":          c.AreaWeight,
		"year_weight":          c.YearWeight,
		"building_area_weight": c.BuildingAreaWeight,
		"settlement_weight":    c.SettlementWeight,
		"street_weight":        c.StreetWeight,
		"property_type_weight": c.PropertyTypeWeight,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if WeightSum(c) <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}
	if c.AreaWeight <= 0 {
		errs = append(errs, "area_weight must be > 0; area is the only always-compared attribute")
	}

	if c.AreaTolerance <= 0 || c.AreaTolerance >= 1 {
		errs = append(errs, "area_tolerance must be in (0,1)")
	}
	if c.BuildingAreaTolerance <= 0 || c.BuildingAreaTolerance >= 1 {
		errs = append(errs, "building_area_tolerance must be in (0,1)")
	}
	if c.YearTolerance < 1 {
		errs = append(errs, "year_tolerance must be >= 1")
	}

	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		errs = append(errs, "min_similarity must be between 0 and 1")
	}
	if c.SettlementSimilarity < 0 || c.SettlementSimilarity > 1 {
		errs = append(errs, "settlement_similarity must be between 0 and 1")
	}

	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		errs = append(errs, "min_confidence must be between 0 and 100")
	}
	if c.MaxResults < 1 {
		errs = append(errs, "max_results must be >= 1")
	}
	if c.MaxCandidates < 1 {
		errs = append(errs, "max_candidates must be >= 1")
	}
	if c.ScoreWorkers < 1 || c.ScoreWorkers > 32 {
		errs = append(errs, "score_workers must be between 1 and 32")
	}

	if len(errs) > 0 {
		return eris.Errorf("match: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
