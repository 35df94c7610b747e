package spatial

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
)

// Resolution is the outcome of resolving a point to a parcel. This path is
// authoritative geometry, not probabilistic, so there is no score breakdown;
// buildings come along unscored. Approximate marks the nearest-boundary
// fallback taken on containment ambiguity.
type Resolution struct {
	Parcel      cadastre.Parcel
	Buildings   []cadastre.Building
	Confidence  float64
	Approximate bool
	DistanceM   float64
}

// Resolver maps WGS84 points to their containing (or nearest) parcel.
type Resolver struct {
	store cadastre.Store
	cfg   config.SpatialConfig
}

// New builds a Resolver over a read-only store.
func New(store cadastre.Store, cfg config.SpatialConfig) *Resolver {
	return &Resolver{store: store, cfg: cfg}
}

// Resolve returns the parcel at the query point. Exactly one containing
// parcel resolves exactly at confidence 100. Zero or multiple containments
// (a point on a shared edge covers two parcels) fall back to the nearest
// boundary within the search radius, flagged approximate with a fixed lower
// confidence. A nil Resolution with nil error means no parcel is within the
// radius, which is a successful "not found", not an error.
func (r *Resolver) Resolve(ctx context.Context, q cadastre.PointQuery) (*Resolution, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	east, north := ToD96TM(q.Longitude, q.Latitude)

	containing, err := r.store.ContainingParcels(ctx, east, north)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: containment query")
	}

	var res *Resolution
	switch len(containing) {
	case 1:
		res = &Resolution{Parcel: containing[0], Confidence: 100}
	default:
		nearest, dist, err := r.store.NearestParcel(ctx, east, north, r.cfg.SearchRadiusM)
		if err != nil {
			return nil, eris.Wrap(err, "spatial: nearest query")
		}
		if nearest == nil {
			zap.L().Info("spatial: no parcel in range",
				zap.Float64("lon", q.Longitude),
				zap.Float64("lat", q.Latitude),
				zap.Float64("radius_m", r.cfg.SearchRadiusM),
			)
			return nil, nil
		}
		res = &Resolution{
			Parcel:      *nearest,
			Confidence:  r.cfg.ApproximateConfidence,
			Approximate: true,
			DistanceM:   dist,
		}
	}

	buildings, err := r.store.BuildingsForParcel(ctx, res.Parcel.ID)
	if err != nil {
		return nil, eris.Wrap(err, "spatial: load buildings")
	}
	res.Buildings = buildings

	zap.L().Info("spatial: point resolved",
		zap.String("parcel_number", res.Parcel.ParcelNumber),
		zap.String("municipality", res.Parcel.MunicipalityCode),
		zap.Bool("approximate", res.Approximate),
		zap.Int("ambiguous_containments", len(containing)),
	)
	return res, nil
}
