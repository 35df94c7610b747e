package cadastre

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gurs-tools/kataster-cli/internal/db"
)

// PostgresStore implements Store and Writer over PostGIS.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with its own connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns, minConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		pgxCfg.MinConns = minConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const parcelColumns = `p.id, p.parcel_number, p.municipality_code, p.municipality_name, p.area_m2, ST_AsEWKB(p.boundary)`

func scanParcel(row pgx.Row) (*Parcel, error) {
	var p Parcel
	var wkb []byte
	if err := row.Scan(&p.ID, &p.ParcelNumber, &p.MunicipalityCode, &p.MunicipalityName, &p.AreaM2, &wkb); err != nil {
		return nil, err
	}
	boundary, err := DecodeBoundary(wkb)
	if err != nil {
		return nil, err
	}
	p.Boundary = boundary
	return &p, nil
}

func collectParcels(rows pgx.Rows) ([]Parcel, error) {
	defer rows.Close()
	var parcels []Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan parcel row")
		}
		parcels = append(parcels, *p)
	}
	return parcels, rows.Err()
}

// FindCandidates implements Store. The area band uses the index on area_m2;
// the settlement cutoff uses ILIKE containment or pg_trgm similarity.
func (s *PostgresStore) FindCandidates(ctx context.Context, f CandidateFilter) ([]Candidate, error) {
	sql := `
		SELECT ` + parcelColumns + `
		FROM cadastre.parcels p
		WHERE p.area_m2 BETWEEN $1 AND $2
	`
	args := []any{f.AreaMin, f.AreaMax}
	if f.Settlement != "" {
		sql += ` AND (p.municipality_name ILIKE '%' || $4 || '%' OR similarity(p.municipality_name, $4) >= $5)`
		args = append(args, f.AreaM2, f.Settlement, f.SettlementSimilarity)
	} else {
		args = append(args, f.AreaM2)
	}
	sql += ` ORDER BY abs(p.area_m2 - $3), p.id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		if f.Settlement != "" {
			sql += ` LIMIT $6`
		} else {
			sql += ` LIMIT $4`
		}
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find candidates")
	}
	parcels, err := collectParcels(rows)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, len(parcels))
	for i, p := range parcels {
		candidates[i] = Candidate{Parcel: p}
	}
	if !f.WithBuildings || len(candidates) == 0 {
		return candidates, nil
	}

	ids := make([]int64, len(parcels))
	byID := make(map[int64]int, len(parcels))
	for i, p := range parcels {
		ids[i] = p.ID
		byID[p.ID] = i
	}
	buildings, err := s.buildingsForParcels(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range buildings {
		if i, ok := byID[b.ParcelID]; ok {
			candidates[i].Buildings = append(candidates[i].Buildings, b)
		}
	}
	return candidates, nil
}

// ContainingParcels implements Store. ST_Covers rather than ST_Contains so a
// point exactly on a shared edge reports every adjacent parcel and routes
// into the ambiguity fallback.
func (s *PostgresStore) ContainingParcels(ctx context.Context, east, north float64) ([]Parcel, error) {
	sql := `
		SELECT ` + parcelColumns + `
		FROM cadastre.parcels p
		WHERE ST_Covers(p.boundary, ST_SetSRID(ST_MakePoint($1, $2), 3794))
		ORDER BY p.id
	`
	rows, err := s.pool.Query(ctx, sql, east, north)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: containing parcels")
	}
	return collectParcels(rows)
}

// NearestParcel implements Store.
func (s *PostgresStore) NearestParcel(ctx context.Context, east, north, radiusM float64) (*Parcel, float64, error) {
	sql := `
		SELECT ` + parcelColumns + `,
		       ST_Distance(p.boundary, ST_SetSRID(ST_MakePoint($1, $2), 3794))
		FROM cadastre.parcels p
		WHERE ST_DWithin(p.boundary, ST_SetSRID(ST_MakePoint($1, $2), 3794), $3)
		ORDER BY p.boundary <-> ST_SetSRID(ST_MakePoint($1, $2), 3794), p.id
		LIMIT 1
	`
	var p Parcel
	var wkb []byte
	var dist float64
	err := s.pool.QueryRow(ctx, sql, east, north, radiusM).Scan(
		&p.ID, &p.ParcelNumber, &p.MunicipalityCode, &p.MunicipalityName, &p.AreaM2, &wkb, &dist,
	)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, eris.Wrap(err, "postgres: nearest parcel")
	}
	boundary, err := DecodeBoundary(wkb)
	if err != nil {
		return nil, 0, err
	}
	p.Boundary = boundary
	return &p, dist, nil
}

// GetParcel implements Store.
func (s *PostgresStore) GetParcel(ctx context.Context, id int64) (*Parcel, error) {
	sql := `SELECT ` + parcelColumns + ` FROM cadastre.parcels p WHERE p.id = $1`
	p, err := scanParcel(s.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "parcel %d", id)
		}
		return nil, eris.Wrap(err, "postgres: get parcel")
	}
	return p, nil
}

// GetParcelDetail implements Store.
func (s *PostgresStore) GetParcelDetail(ctx context.Context, id int64) (*ParcelDetail, error) {
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

const buildingColumns = `b.id, b.parcel_id, b.building_number, b.construction_year, b.net_floor_area_m2,
	       b.floor_count, b.type, b.street, b.house_number, b.settlement, b.post_name, b.post_code`

func collectBuildings(rows pgx.Rows) ([]Building, error) {
	defer rows.Close()
	var buildings []Building
	for rows.Next() {
		var b Building
		if err := rows.Scan(
			&b.ID, &b.ParcelID, &b.BuildingNumber, &b.ConstructionYear, &b.NetFloorAreaM2,
			&b.FloorCount, &b.Type, &b.Street, &b.HouseNumber, &b.Settlement, &b.PostName, &b.PostCode,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan building row")
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// BuildingsForParcel implements Store.
func (s *PostgresStore) BuildingsForParcel(ctx context.Context, parcelID int64) ([]Building, error) {
	sql := `SELECT ` + buildingColumns + ` FROM cadastre.buildings b WHERE b.parcel_id = $1 ORDER BY b.id`
	rows, err := s.pool.Query(ctx, sql, parcelID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: buildings for parcel")
	}
	return collectBuildings(rows)
}

func (s *PostgresStore) buildingsForParcels(ctx context.Context, parcelIDs []int64) ([]Building, error) {
	sql := `SELECT ` + buildingColumns + ` FROM cadastre.buildings b WHERE b.parcel_id = ANY($1) ORDER BY b.id`
	rows, err := s.pool.Query(ctx, sql, parcelIDs)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: buildings for parcels")
	}
	return collectBuildings(rows)
}

func (s *PostgresStore) ownersForParcel(ctx context.Context, parcelID int64) ([]Owner, error) {
	sql := `
		SELECT o.id, o.parcel_id, o.name, o.type, o.share, o.right_type
		FROM cadastre.owners o WHERE o.parcel_id = $1 ORDER BY o.id
	`
	rows, err := s.pool.Query(ctx, sql, parcelID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: owners for parcel")
	}
	defer rows.Close()

	var owners []Owner
	for rows.Next() {
		var o Owner
		if err := rows.Scan(&o.ID, &o.ParcelID, &o.Name, &o.Type, &o.Share, &o.Right); err != nil {
			return nil, eris.Wrap(err, "postgres: scan owner row")
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (s *PostgresStore) zonesForMunicipality(ctx context.Context, municipalityCode string) ([]ValuationZone, error) {
	sql := `
		SELECT z.id, z.municipality_code, z.zone_level, z.model_code, z.value_per_m2
		FROM cadastre.valuation_zones z WHERE z.municipality_code = $1 ORDER BY z.zone_level
	`
	rows, err := s.pool.Query(ctx, sql, municipalityCode)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: zones for municipality")
	}
	defer rows.Close()

	var zones []ValuationZone
	for rows.Next() {
		var z ValuationZone
		if err := rows.Scan(&z.ID, &z.MunicipalityCode, &z.ZoneLevel, &z.ModelCode, &z.ValuePerM2); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone row")
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
