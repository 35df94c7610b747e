// Package cadastre defines the cadastral domain model and the data store
// interfaces over parcels, buildings and owners. The registry itself is
// populated by the import commands; the matching and spatial query paths
// are strictly read-only.
package cadastre

import (
	"strings"
	"time"

	"github.com/twpayne/go-geom"
)

// Parcel is a cadastral land unit. The (ParcelNumber, MunicipalityCode) pair
// is unique across the registry. Boundary is a polygon in the storage CRS
// (Slovenian D96/TM, EPSG:3794).
type Parcel struct {
	ID               int64         `json:"id"`
	ParcelNumber     string        `json:"parcel_number"`
	MunicipalityCode string        `json:"municipality_code"`
	MunicipalityName string        `json:"municipality_name"`
	AreaM2           float64       `json:"area_m2"`
	Boundary         *geom.Polygon `json:"-"`
	CreatedAt        time.Time     `json:"created_at,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at,omitempty"`
}

// Building is a structure registered against exactly one parcel. Most
// attribute fields are nullable in the registry exports.
type Building struct {
	ID               int64    `json:"id"`
	ParcelID         int64    `json:"parcel_id"`
	BuildingNumber   string   `json:"building_number,omitempty"`
	ConstructionYear *int     `json:"construction_year,omitempty"`
	NetFloorAreaM2   *float64 `json:"net_floor_area_m2,omitempty"`
	FloorCount       *int     `json:"floor_count,omitempty"`
	Type             string   `json:"type,omitempty"`
	Street           string   `json:"street,omitempty"`
	HouseNumber      string   `json:"house_number,omitempty"`
	Settlement       string   `json:"settlement,omitempty"`
	PostName         string   `json:"post_name,omitempty"`
	PostCode         string   `json:"post_code,omitempty"`
}

// FullAddress formats the structured address parts, skipping blanks.
func (b *Building) FullAddress() string {
	parts := make([]string, 0, 3)
	if b.Street != "" {
		s := b.Street
		if b.HouseNumber != "" {
			s += " " + b.HouseNumber
		}
		parts = append(parts, s)
	}
	if b.Settlement != "" {
		parts = append(parts, b.Settlement)
	}
	if b.PostCode != "" && b.PostName != "" {
		parts = append(parts, b.PostCode+" "+b.PostName)
	}
	return strings.Join(parts, ", ")
}

// Owner is ownership reference data for a parcel. It is surfaced in parcel
// detail lookups and never consumed by matching.
type Owner struct {
	ID       int64  `json:"id"`
	ParcelID int64  `json:"parcel_id"`
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Share    string `json:"share,omitempty"`
	Right    string `json:"right,omitempty"`
}

// ValuationZone is market-context reference data attached to parcels by
// municipality. Not consumed by matching.
type ValuationZone struct {
	ID               int64   `json:"id"`
	MunicipalityCode string  `json:"municipality_code"`
	ZoneLevel        int     `json:"zone_level"`
	ModelCode        string  `json:"model_code"`
	ValuePerM2       float64 `json:"value_per_m2"`
}

// Transaction is a recorded market transaction, kept as market context.
type Transaction struct {
	ID               int64     `json:"id"`
	MunicipalityCode string    `json:"municipality_code"`
	ParcelNumber     string    `json:"parcel_number,omitempty"`
	Price            float64   `json:"price"`
	ContractDate     time.Time `json:"contract_date"`
	PropertyType     string    `json:"property_type,omitempty"`
}

// Candidate is a parcel under consideration for scoring, together with the
// buildings registered on it (loaded only when the query supplied building
// attributes).
type Candidate struct {
	Parcel    Parcel
	Buildings []Building
}

// ParcelDetail bundles a parcel with its buildings, owners and market
// context for detail lookups.
type ParcelDetail struct {
	Parcel    Parcel          `json:"parcel"`
	Buildings []Building      `json:"buildings"`
	Owners    []Owner         `json:"owners"`
	Zones     []ValuationZone `json:"valuation_zones,omitempty"`
}
