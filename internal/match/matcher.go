package match

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
	"github.com/gurs-tools/kataster-cli/internal/textmatch"
)

// Candidate is a parcel awaiting scoring, joined with at most one building.
// The join happens here so the engine only ever compares against a single
// building.
type Candidate struct {
	Parcel   cadastre.Parcel
	Building *cadastre.Building
}

// AttributeMatcher narrows the parcel store to a bounded candidate set using
// hard prefilters: an area band derived from the relative tolerance and,
// when the listing names a settlement, a fuzzy text cutoff. The cutoff is a
// performance trade-off, not a scoring step; scoring re-examines settlement
// similarity with its own threshold.
type AttributeMatcher struct {
	store      cadastre.Store
	cfg        config.MatchConfig
	similarity textmatch.SimilarityFunc
}

// NewAttributeMatcher builds a matcher over a read-only store.
func NewAttributeMatcher(store cadastre.Store, cfg config.MatchConfig) *AttributeMatcher {
	return &AttributeMatcher{store: store, cfg: cfg, similarity: textmatch.Similarity}
}

// Candidates generates the candidate set for a validated listing, capped at
// the configured maximum and ordered by area closeness. An empty slice is a
// valid "no match" result, not an error.
func (m *AttributeMatcher) Candidates(ctx context.Context, q cadastre.ListingQuery) ([]Candidate, error) {
	filter := cadastre.CandidateFilter{
		AreaM2:        q.ParcelAreaM2,
		AreaMin:       q.ParcelAreaM2 * (1 - m.cfg.AreaTolerance),
		AreaMax:       q.ParcelAreaM2 * (1 + m.cfg.AreaTolerance),
		WithBuildings: q.HasBuildingAttributes(),
		Limit:         m.cfg.MaxCandidates,
	}
	if q.Settlement != "" {
		filter.Settlement = textmatch.MainSettlement(q.Settlement)
		filter.SettlementSimilarity = m.cfg.SettlementSimilarity
	}

	rows, err := m.store.FindCandidates(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "match: find candidates")
	}

	cands := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := Candidate{Parcel: row.Parcel}
		if q.HasBuildingAttributes() {
			c.Building = m.pickBuilding(q, row.Buildings)
		}
		cands = append(cands, c)
	}
	return cands, nil
}

// pickBuilding joins the single building minimizing combined attribute
// deviation. A building missing a queried attribute takes a flat deviation
// penalty so complete buildings win over sparse ones. Ties break on the
// lowest building ID.
func (m *AttributeMatcher) pickBuilding(q cadastre.ListingQuery, buildings []cadastre.Building) *cadastre.Building {
	switch len(buildings) {
	case 0:
		return nil
	case 1:
		return &buildings[0]
	}

	const missingPenalty = 2.0

	best := -1
	bestDev := math.Inf(1)
	for i, b := range buildings {
		var dev float64
		if q.ConstructionYear != nil {
			if b.ConstructionYear == nil {
				dev += missingPenalty
			} else {
				dev += math.Abs(float64(*b.ConstructionYear-*q.ConstructionYear)) / math.Max(float64(m.cfg.YearTolerance), 1)
			}
		}
		if q.NetFloorAreaM2 != nil {
			if b.NetFloorAreaM2 == nil {
				dev += missingPenalty
			} else {
				dev += math.Abs(*b.NetFloorAreaM2-*q.NetFloorAreaM2) / math.Max(*q.NetFloorAreaM2*m.cfg.BuildingAreaTolerance, 1e-9)
			}
		}
		if q.StreetName != "" {
			if b.Street == "" {
				dev += missingPenalty
			} else {
				dev += 1 - m.similarity(q.StreetName, b.Street)
			}
		}
		if q.PropertyType != "" {
			if b.Type == "" {
				dev += missingPenalty
			} else {
				dev += 1 - m.similarity(q.PropertyType, b.Type)
			}
		}
		if dev < bestDev {
			bestDev = dev
			best = i
		}
	}
	return &buildings[best]
}
