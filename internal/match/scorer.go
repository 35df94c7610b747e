package match

import (
	"math"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
	"github.com/gurs-tools/kataster-cli/internal/textmatch"
)

// Attribute keys used in score breakdowns.
const (
	AttrArea         = "parcel_area"
	AttrYear         = "construction_year"
	AttrFloorArea    = "net_floor_area"
	AttrSettlement   = "settlement"
	AttrStreet       = "street"
	AttrPropertyType = "property_type"
)

// ScoringEngine scores a candidate against a listing. An attribute
// contributes only when present on both sides; its weight is then counted in
// the normalization base whether or not the values agree, so absence is
// never a penalty and disagreement always is.
type ScoringEngine struct {
	cfg        config.MatchConfig
	similarity textmatch.SimilarityFunc
}

// NewScoringEngine builds an engine with the default text similarity.
func NewScoringEngine(cfg config.MatchConfig) *ScoringEngine {
	return &ScoringEngine{cfg: cfg, similarity: textmatch.Similarity}
}

// WithSimilarity swaps the text comparison strategy. Must be called before
// the engine serves queries.
func (e *ScoringEngine) WithSimilarity(fn textmatch.SimilarityFunc) *ScoringEngine {
	e.similarity = fn
	return e
}

// ScoreCandidate produces the confidence and per-attribute breakdown for one
// candidate. Confidence is the achieved score normalized by the weight sum
// of the attributes actually compared, scaled to 0-100.
func (e *ScoringEngine) ScoreCandidate(q cadastre.ListingQuery, c Candidate) MatchCandidate {
	scores := make(map[string]float64)
	var achieved, base float64

	// Parcel area is required on the listing and always present on the
	// parcel, so it is always compared.
	base += e.cfg.AreaWeight
	areaScore := relativeScore(e.cfg.AreaWeight, c.Parcel.AreaM2, q.ParcelAreaM2, e.cfg.AreaTolerance)
	scores[AttrArea] = round2(areaScore)
	achieved += areaScore

	b := c.Building
	if q.ConstructionYear != nil && b != nil && b.ConstructionYear != nil {
		base += e.cfg.YearWeight
		s := e.yearScore(*b.ConstructionYear, *q.ConstructionYear)
		scores[AttrYear] = round2(s)
		achieved += s
	}
	if q.NetFloorAreaM2 != nil && b != nil && b.NetFloorAreaM2 != nil {
		base += e.cfg.BuildingAreaWeight
		s := relativeScore(e.cfg.BuildingAreaWeight, *b.NetFloorAreaM2, *q.NetFloorAreaM2, e.cfg.BuildingAreaTolerance)
		scores[AttrFloorArea] = round2(s)
		achieved += s
	}
	if q.Settlement != "" {
		// Every parcel carries its municipality name; a building settlement,
		// when present, is the finer-grained comparison and the better of
		// the two counts.
		base += e.cfg.SettlementWeight
		s := e.textScore(e.cfg.SettlementWeight, q.Settlement, c.Parcel.MunicipalityName)
		if b != nil && b.Settlement != "" {
			s = math.Max(s, e.textScore(e.cfg.SettlementWeight, q.Settlement, b.Settlement))
		}
		scores[AttrSettlement] = round2(s)
		achieved += s
	}
	if q.StreetName != "" && b != nil && b.Street != "" {
		base += e.cfg.StreetWeight
		s := e.textScore(e.cfg.StreetWeight, q.StreetName, b.Street)
		scores[AttrStreet] = round2(s)
		achieved += s
	}
	if q.PropertyType != "" && b != nil && b.Type != "" {
		base += e.cfg.PropertyTypeWeight
		s := e.textScore(e.cfg.PropertyTypeWeight, q.PropertyType, b.Type)
		scores[AttrPropertyType] = round2(s)
		achieved += s
	}

	var confidence float64
	if base > 0 {
		confidence = achieved / base * 100
	}
	confidence = math.Min(100, math.Max(0, confidence))

	return MatchCandidate{
		Parcel:     c.Parcel,
		Building:   b,
		Confidence: round2(confidence),
		Score:      round2(achieved),
		Scores:     scores,
	}
}

// relativeScore decays linearly with the relative deviation and is hard-zero
// beyond the tolerance, matching the candidate prefilter band.
func relativeScore(w, got, want, tolerance float64) float64 {
	d := math.Abs(got - want)
	limit := want * tolerance
	if limit <= 0 {
		if d == 0 {
			return w
		}
		return 0
	}
	return w * math.Max(0, 1-d/limit)
}

// yearScore awards full weight within the year tolerance, then decays
// linearly over a second tolerance span. Soft, not hard-zero: a listing's
// "built 1974" against a 1972 registry year is still evidence.
func (e *ScoringEngine) yearScore(got, want int) float64 {
	d := math.Abs(float64(got - want))
	t := float64(e.cfg.YearTolerance)
	if t <= 0 {
		t = 1
	}
	if d <= t {
		return e.cfg.YearWeight
	}
	return e.cfg.YearWeight * math.Max(0, 1-(d-t)/t)
}

// textScore awards full weight on exact normalized match, otherwise the
// similarity-scaled weight, floored to zero below the minimum similarity.
func (e *ScoringEngine) textScore(w float64, query, candidate string) float64 {
	if textmatch.Normalize(query) == textmatch.Normalize(candidate) {
		return w
	}
	sim := e.similarity(query, candidate)
	if sim < e.cfg.MinSimilarity {
		return 0
	}
	return w * sim
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
