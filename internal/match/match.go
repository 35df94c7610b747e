// Package match implements fuzzy listing-to-parcel matching: hard
// prefiltering of the parcel store into a bounded candidate set, weighted
// per-attribute scoring with a per-candidate normalization base, and
// deterministic ranking.
package match

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
)

// MatchCandidate is one ranked match. Scores holds the per-attribute
// breakdown; only attributes present on both the listing and the candidate
// appear in it. Approximate is set by the spatial path, never by scoring.
type MatchCandidate struct {
	Parcel      cadastre.Parcel    `json:"parcel"`
	Building    *cadastre.Building `json:"building,omitempty"`
	Confidence  float64            `json:"confidence"`
	Score       float64            `json:"score"`
	Scores      map[string]float64 `json:"score_breakdown"`
	Approximate bool               `json:"approximate,omitempty"`
}

// Matcher runs the full listing path: candidate generation, scoring,
// thresholding and ranking. It is stateless and safe for concurrent use.
type Matcher struct {
	cfg     config.MatchConfig
	matcher *AttributeMatcher
	engine  *ScoringEngine
}

// New builds a Matcher over a read-only store.
func New(store cadastre.Store, cfg config.MatchConfig) *Matcher {
	return &Matcher{
		cfg:     cfg,
		matcher: NewAttributeMatcher(store, cfg),
		engine:  NewScoringEngine(cfg),
	}
}

// Engine exposes the scoring engine so callers can swap the similarity
// strategy before serving queries.
func (m *Matcher) Engine() *ScoringEngine {
	return m.engine
}

// Match returns every candidate at or above the minimum confidence, ordered
// by confidence descending with ties broken by ascending parcel ID. An empty
// slice is a valid "no match" outcome; errors are infrastructure failures or
// caller faults, never empty results in disguise.
func (m *Matcher) Match(ctx context.Context, q cadastre.ListingQuery) ([]MatchCandidate, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cands, err := m.matcher.Candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	scored, err := m.score(ctx, q, cands)
	if err != nil {
		return nil, err
	}

	kept := scored[:0]
	for _, mc := range scored {
		if mc.Confidence >= m.cfg.MinConfidence {
			kept = append(kept, mc)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return kept[i].Parcel.ID < kept[j].Parcel.ID
	})
	kept = dedupeByParcel(kept)

	zap.L().Info("match: listing scored",
		zap.Int("candidates", len(cands)),
		zap.Int("matches", len(kept)),
	)
	return kept, nil
}

// score runs the engine over the candidate set, partitioned across workers
// when configured. Results land at fixed indices so output never depends on
// worker interleaving.
func (m *Matcher) score(ctx context.Context, q cadastre.ListingQuery, cands []Candidate) ([]MatchCandidate, error) {
	results := make([]MatchCandidate, len(cands))

	workers := m.cfg.ScoreWorkers
	if workers <= 1 || len(cands) < 2 {
		for i, c := range cands {
			results[i] = m.engine.ScoreCandidate(q, c)
		}
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(cands) + workers - 1) / workers
	for start := 0; start < len(cands); start += chunk {
		start, end := start, min(start+chunk, len(cands))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return eris.Wrap(err, "match: scoring canceled")
			}
			for i := start; i < end; i++ {
				results[i] = m.engine.ScoreCandidate(q, cands[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// dedupeByParcel keeps the first (highest ranked) entry per parcel ID.
// Expects its input sorted.
func dedupeByParcel(in []MatchCandidate) []MatchCandidate {
	seen := make(map[int64]struct{}, len(in))
	out := in[:0]
	for _, mc := range in {
		if _, ok := seen[mc.Parcel.ID]; ok {
			continue
		}
		seen[mc.Parcel.ID] = struct{}{}
		out = append(out, mc)
	}
	return out
}
