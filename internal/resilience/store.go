package resilience

import (
	"context"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

// Store decorates a cadastre.Store with retries on transient failures, so a
// dropped connection or a lock conflict never surfaces to a caller that a
// single reattempt would have served. Non-transient errors, including
// ErrNotFound and caller faults, pass through untouched.
type Store struct {
	inner cadastre.Store
	cfg   RetryConfig
}

// WrapStore wraps a store with the given retry policy.
func WrapStore(inner cadastre.Store, cfg RetryConfig) *Store {
	return &Store{inner: inner, cfg: cfg}
}

func (s *Store) retryCfg(op string) RetryConfig {
	cfg := s.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = RetryLogger("store", op)
	}
	return cfg
}

func (s *Store) FindCandidates(ctx context.Context, f cadastre.CandidateFilter) ([]cadastre.Candidate, error) {
	return DoVal(ctx, s.retryCfg("find_candidates"), func(ctx context.Context) ([]cadastre.Candidate, error) {
		return s.inner.FindCandidates(ctx, f)
	})
}

func (s *Store) ContainingParcels(ctx context.Context, east, north float64) ([]cadastre.Parcel, error) {
	return DoVal(ctx, s.retryCfg("containing_parcels"), func(ctx context.Context) ([]cadastre.Parcel, error) {
		return s.inner.ContainingParcels(ctx, east, north)
	})
}

func (s *Store) NearestParcel(ctx context.Context, east, north, radiusM float64) (*cadastre.Parcel, float64, error) {
	type nearest struct {
		parcel *cadastre.Parcel
		dist   float64
	}
	res, err := DoVal(ctx, s.retryCfg("nearest_parcel"), func(ctx context.Context) (nearest, error) {
		p, d, err := s.inner.NearestParcel(ctx, east, north, radiusM)
		return nearest{parcel: p, dist: d}, err
	})
	return res.parcel, res.dist, err
}

func (s *Store) GetParcel(ctx context.Context, id int64) (*cadastre.Parcel, error) {
	return DoVal(ctx, s.retryCfg("get_parcel"), func(ctx context.Context) (*cadastre.Parcel, error) {
		return s.inner.GetParcel(ctx, id)
	})
}

func (s *Store) GetParcelDetail(ctx context.Context, id int64) (*cadastre.ParcelDetail, error) {
	return DoVal(ctx, s.retryCfg("get_parcel_detail"), func(ctx context.Context) (*cadastre.ParcelDetail, error) {
		return s.inner.GetParcelDetail(ctx, id)
	})
}

func (s *Store) BuildingsForParcel(ctx context.Context, parcelID int64) ([]cadastre.Building, error) {
	return DoVal(ctx, s.retryCfg("buildings_for_parcel"), func(ctx context.Context) ([]cadastre.Building, error) {
		return s.inner.BuildingsForParcel(ctx, parcelID)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return Do(ctx, s.retryCfg("ping"), func(ctx context.Context) error {
		return s.inner.Ping(ctx)
	})
}

func (s *Store) Close() error {
	return s.inner.Close()
}
