package cadastre

import (
	"github.com/rotisserie/eris"
)

// ErrInvalidQuery marks caller-fault validation failures. They are rejected
// before any store access and must stay distinguishable from an empty result
// and from infrastructure failures.
var ErrInvalidQuery = eris.New("cadastre: invalid query")

// ErrNotFound is returned by detail lookups for unknown parcel IDs.
var ErrNotFound = eris.New("cadastre: not found")

// ListingQuery is the ephemeral input of the attribute matching path.
// ParcelAreaM2 is required; everything else is optional listing noise.
type ListingQuery struct {
	Settlement       string   `json:"settlement,omitempty"`
	ParcelAreaM2     float64  `json:"parcel_area_m2"`
	ConstructionYear *int     `json:"construction_year,omitempty"`
	NetFloorAreaM2   *float64 `json:"net_floor_area_m2,omitempty"`
	PropertyType     string   `json:"property_type,omitempty"`
	StreetName       string   `json:"street_name,omitempty"`
}

// Validate rejects listings no store query could serve.
func (q ListingQuery) Validate() error {
	if q.ParcelAreaM2 <= 0 {
		return eris.Wrap(ErrInvalidQuery, "parcel_area_m2 must be > 0")
	}
	if q.ConstructionYear != nil && (*q.ConstructionYear < 1000 || *q.ConstructionYear > 2200) {
		return eris.Wrapf(ErrInvalidQuery, "construction_year %d out of range", *q.ConstructionYear)
	}
	if q.NetFloorAreaM2 != nil && *q.NetFloorAreaM2 <= 0 {
		return eris.Wrap(ErrInvalidQuery, "net_floor_area_m2 must be > 0")
	}
	return nil
}

// HasBuildingAttributes reports whether the listing carries any attribute
// that can only be compared against a building.
func (q ListingQuery) HasBuildingAttributes() bool {
	return q.ConstructionYear != nil || q.NetFloorAreaM2 != nil || q.PropertyType != "" || q.StreetName != ""
}

// PointQuery is the ephemeral input of the spatial resolution path.
// Coordinates are WGS84 (EPSG:4326).
type PointQuery struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Label     string  `json:"label,omitempty"`
}

// Validate rejects malformed coordinates.
func (q PointQuery) Validate() error {
	if q.Longitude < -180 || q.Longitude > 180 {
		return eris.Wrapf(ErrInvalidQuery, "longitude %.6f out of range", q.Longitude)
	}
	if q.Latitude < -90 || q.Latitude > 90 {
		return eris.Wrapf(ErrInvalidQuery, "latitude %.6f out of range", q.Latitude)
	}
	return nil
}
