package cadastre

import (
	"context"
	"database/sql"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/gurs-tools/kataster-cli/internal/textmatch"
)

// SQLiteStore implements Store and Writer using modernc.org/sqlite. It keeps
// geometry as EWKB blobs plus bounding-box columns and evaluates the spatial
// predicates in Go, which makes it suitable for local datasets, demos and
// tests without a PostGIS instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// An in-memory database exists per connection; cap the pool so every
	// statement sees the same database.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		sqlDB.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS parcels (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	parcel_number     TEXT NOT NULL,
	municipality_code TEXT NOT NULL,
	municipality_name TEXT NOT NULL,
	area_m2           REAL NOT NULL,
	boundary          BLOB,
	min_e             REAL,
	min_n             REAL,
	max_e             REAL,
	max_n             REAL,
	UNIQUE (parcel_number, municipality_code)
);

CREATE TABLE IF NOT EXISTS buildings (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	parcel_id         INTEGER NOT NULL REFERENCES parcels(id) ON DELETE CASCADE,
	building_number   TEXT NOT NULL DEFAULT '',
	construction_year INTEGER,
	net_floor_area_m2 REAL,
	floor_count       INTEGER,
	type              TEXT NOT NULL DEFAULT '',
	street            TEXT NOT NULL DEFAULT '',
	house_number      TEXT NOT NULL DEFAULT '',
	settlement        TEXT NOT NULL DEFAULT '',
	post_name         TEXT NOT NULL DEFAULT '',
	post_code         TEXT NOT NULL DEFAULT '',
	UNIQUE (parcel_id, building_number)
);

CREATE TABLE IF NOT EXISTS owners (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	parcel_id  INTEGER NOT NULL REFERENCES parcels(id) ON DELETE CASCADE,
	name       TEXT NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	share      TEXT NOT NULL DEFAULT '',
	right_type TEXT NOT NULL DEFAULT '',
	UNIQUE (parcel_id, name, right_type)
);

CREATE TABLE IF NOT EXISTS valuation_zones (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	municipality_code TEXT NOT NULL,
	zone_level        INTEGER NOT NULL,
	model_code        TEXT NOT NULL,
	value_per_m2      REAL NOT NULL,
	UNIQUE (municipality_code, zone_level, model_code)
);

CREATE TABLE IF NOT EXISTS transactions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	municipality_code TEXT NOT NULL,
	parcel_number     TEXT NOT NULL DEFAULT '',
	price             REAL NOT NULL,
	contract_date     DATETIME NOT NULL,
	property_type     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_parcels_area ON parcels(area_m2);
CREATE INDEX IF NOT EXISTS idx_parcels_bbox ON parcels(min_e, max_e, min_n, max_n);
CREATE INDEX IF NOT EXISTS idx_buildings_parcel ON buildings(parcel_id);
CREATE INDEX IF NOT EXISTS idx_owners_parcel ON owners(parcel_id);
`

// EnsureSchema implements Writer.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: ensure schema")
}

const sqliteParcelColumns = `id, parcel_number, municipality_code, municipality_name, area_m2, boundary`

func scanSQLiteParcel(scan func(dest ...any) error) (*Parcel, error) {
	var p Parcel
	var wkb []byte
	if err := scan(&p.ID, &p.ParcelNumber, &p.MunicipalityCode, &p.MunicipalityName, &p.AreaM2, &wkb); err != nil {
		return nil, err
	}
	boundary, err := DecodeBoundary(wkb)
	if err != nil {
		return nil, err
	}
	p.Boundary = boundary
	return &p, nil
}

// FindCandidates implements Store. The area band runs in SQL; the settlement
// cutoff runs in Go over normalized names because SQLite has no trigram
// support. Rows stream in area-closeness order so the cap applies after the
// settlement filter.
func (s *SQLiteStore) FindCandidates(ctx context.Context, f CandidateFilter) ([]Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteParcelColumns+`
		FROM parcels
		WHERE area_m2 BETWEEN ? AND ?
		ORDER BY abs(area_m2 - ?), id
	`, f.AreaMin, f.AreaMax, f.AreaM2)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find candidates")
	}
	defer rows.Close()

	wanted := textmatch.Normalize(textmatch.MainSettlement(f.Settlement))
	var candidates []Candidate
	for rows.Next() {
		p, err := scanSQLiteParcel(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel row")
		}
		if wanted != "" && !settlementMatches(p.MunicipalityName, wanted, f.SettlementSimilarity) {
			continue
		}
		candidates = append(candidates, Candidate{Parcel: *p})
		if f.Limit > 0 && len(candidates) >= f.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate candidate rows")
	}

	if !f.WithBuildings {
		return candidates, nil
	}
	for i := range candidates {
		buildings, err := s.BuildingsForParcel(ctx, candidates[i].Parcel.ID)
		if err != nil {
			return nil, err
		}
		candidates[i].Buildings = buildings
	}
	return candidates, nil
}

func settlementMatches(municipalityName, wantedNorm string, threshold float64) bool {
	got := textmatch.Normalize(municipalityName)
	if got == "" {
		return false
	}
	if threshold <= 0 {
		threshold = 1
	}
	return textmatch.Similarity(got, wantedNorm) >= threshold
}

// ContainingParcels implements Store. Bounding boxes narrow the scan, then
// exact containment runs on decoded geometry.
func (s *SQLiteStore) ContainingParcels(ctx context.Context, east, north float64) ([]Parcel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteParcelColumns+`
		FROM parcels
		WHERE boundary IS NOT NULL
		  AND min_e <= ? AND max_e >= ? AND min_n <= ? AND max_n >= ?
		ORDER BY id
	`, east, east, north, north)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: containing parcels")
	}
	defer rows.Close()

	pt := geom.Coord{east, north}
	var parcels []Parcel
	for rows.Next() {
		p, err := scanSQLiteParcel(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parcel row")
		}
		if PolygonCoversPoint(p.Boundary, pt) {
			parcels = append(parcels, *p)
		}
	}
	return parcels, eris.Wrap(rows.Err(), "sqlite: iterate containment rows")
}

// NearestParcel implements Store.
func (s *SQLiteStore) NearestParcel(ctx context.Context, east, north, radiusM float64) (*Parcel, float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sqliteParcelColumns+`
		FROM parcels
		WHERE boundary IS NOT NULL
		  AND min_e <= ? AND max_e >= ? AND min_n <= ? AND max_n >= ?
		ORDER BY id
	`, east+radiusM, east-radiusM, north+radiusM, north-radiusM)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: nearest parcel")
	}
	defer rows.Close()

	pt := geom.Coord{east, north}
	var best *Parcel
	bestDist := math.Inf(1)
	for rows.Next() {
		p, err := scanSQLiteParcel(rows.Scan)
		if err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan parcel row")
		}
		d := DistanceToParcel(p.Boundary, pt)
		if d <= radiusM && d < bestDist {
			best, bestDist = p, d
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: iterate nearest rows")
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestDist, nil
}

// GetParcel implements Store.
func (s *SQLiteStore) GetParcel(ctx context.Context, id int64) (*Parcel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteParcelColumns+` FROM parcels WHERE id = ?`, id)
	p, err := scanSQLiteParcel(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "parcel %d", id)
		}
		return nil, eris.Wrap(err, "sqlite: get parcel")
	}
	return p, nil
}

// GetParcelDetail implements Store.
func (s *SQLiteStore) GetParcelDetail(ctx context.Context, id int64) (*ParcelDetail, error) {
	p, err := s.GetParcel(ctx, id)
	if err != nil {
		return nil, err
	}
	buildings, err := s.BuildingsForParcel(ctx, id)
	if err != nil {
		return nil, err
	}
	owners, err := s.ownersForParcel(ctx, id)
	if err != nil {
		return nil, err
	}
	zones, err := s.zonesForMunicipality(ctx, p.MunicipalityCode)
	if err != nil {
		return nil, err
	}
	return &ParcelDetail{Parcel: *p, Buildings: buildings, Owners: owners, Zones: zones}, nil
}

// BuildingsForParcel implements Store.
func (s *SQLiteStore) BuildingsForParcel(ctx context.Context, parcelID int64) ([]Building, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parcel_id, building_number, construction_year, net_floor_area_m2,
		       floor_count, type, street, house_number, settlement, post_name, post_code
		FROM buildings WHERE parcel_id = ? ORDER BY id
	`, parcelID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: buildings for parcel")
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		var b Building
		if err := rows.Scan(
			&b.ID, &b.ParcelID, &b.BuildingNumber, &b.ConstructionYear, &b.NetFloorAreaM2,
			&b.FloorCount, &b.Type, &b.Street, &b.HouseNumber, &b.Settlement, &b.PostName, &b.PostCode,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan building row")
		}
		buildings = append(buildings, b)
	}
	return buildings, eris.Wrap(rows.Err(), "sqlite: iterate building rows")
}

func (s *SQLiteStore) ownersForParcel(ctx context.Context, parcelID int64) ([]Owner, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, parcel_id, name, type, share, right_type
		FROM owners WHERE parcel_id = ? ORDER BY id
	`, parcelID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: owners for parcel")
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.ParcelID, &o.Name, &o.Type, &o.Share, &o.Right); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan owner row")
		}
		owners = append(owners, o)
	}
	return owners, eris.Wrap(rows.Err(), "sqlite: iterate owner rows")
}

func (s *SQLiteStore) zonesForMunicipality(ctx context.Context, municipalityCode string) ([]ValuationZone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, municipality_code, zone_level, model_code, value_per_m2
		FROM valuation_zones WHERE municipality_code = ? ORDER BY zone_level
	`, municipalityCode)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: zones for municipality")
	}
	defer rows.Close()

	var zones []ValuationZone
	for rows.Next() {
		var z ValuationZone
		if err := rows.Scan(&z.ID, &z.MunicipalityCode, &z.ZoneLevel, &z.ModelCode, &z.ValuePerM2); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone row")
		}
		zones = append(zones, z)
	}
	return zones, eris.Wrap(rows.Err(), "sqlite: iterate zone rows")
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
