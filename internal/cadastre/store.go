package cadastre

import "context"

// CandidateFilter narrows the parcel store to a bounded candidate set before
// scoring. The area band is a hard filter; the settlement cutoff is a
// performance prefilter, not a scoring step.
type CandidateFilter struct {
	// AreaM2 is the listing area; candidates are ordered by closeness to it.
	AreaM2  float64
	AreaMin float64
	AreaMax float64

	// Settlement, when non-empty, restricts candidates to municipalities
	// whose name contains it (case-insensitive) or is at least
	// SettlementSimilarity similar to it.
	Settlement           string
	SettlementSimilarity float64

	// WithBuildings loads the buildings of each candidate parcel.
	WithBuildings bool

	// Limit caps the candidate set. Zero means no cap.
	Limit int
}

// Store is the read-only query surface the matching and spatial paths share.
// Implementations must honor context cancellation on every call.
type Store interface {
	// FindCandidates returns parcels passing the filter, ordered by area
	// closeness, capped at filter.Limit. An empty slice is a valid
	// "no match" outcome.
	FindCandidates(ctx context.Context, f CandidateFilter) ([]Candidate, error)

	// ContainingParcels returns every parcel whose boundary contains the
	// point (storage CRS). More than one element means boundary ambiguity.
	ContainingParcels(ctx context.Context, east, north float64) ([]Parcel, error)

	// NearestParcel returns the parcel whose boundary is closest to the
	// point within radiusM meters, with the distance. (nil, 0, nil) when
	// nothing is in range.
	NearestParcel(ctx context.Context, east, north, radiusM float64) (*Parcel, float64, error)

	// GetParcel returns a parcel by ID, or ErrNotFound.
	GetParcel(ctx context.Context, id int64) (*Parcel, error)

	// GetParcelDetail returns a parcel with buildings, owners and market
	// context, or ErrNotFound.
	GetParcelDetail(ctx context.Context, id int64) (*ParcelDetail, error)

	// BuildingsForParcel returns the buildings registered on a parcel.
	BuildingsForParcel(ctx context.Context, parcelID int64) ([]Building, error)

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// Writer is the ingestion surface used by the import and seed commands. The
// loader must preserve the (parcel_number, municipality_code) uniqueness and
// valid-geometry invariants the read path relies on.
type Writer interface {
	EnsureSchema(ctx context.Context) error

	// ParcelIDByNumber resolves the registry ID of a parcel by its natural
	// key, so building and owner rows can be attached after a parcel load.
	ParcelIDByNumber(ctx context.Context, parcelNumber, municipalityCode string) (int64, error)

	UpsertParcels(ctx context.Context, parcels []Parcel) (int64, error)
	UpsertBuildings(ctx context.Context, buildings []Building) (int64, error)
	UpsertOwners(ctx context.Context, owners []Owner) (int64, error)
	UpsertValuationZones(ctx context.Context, zones []ValuationZone) (int64, error)
	InsertTransactions(ctx context.Context, txs []Transaction) (int64, error)
}
