package cadastre

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/db"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE EXTENSION IF NOT EXISTS pg_trgm`,
	`CREATE SCHEMA IF NOT EXISTS cadastre`,
	`CREATE TABLE IF NOT EXISTS cadastre.parcels (
		id BIGSERIAL PRIMARY KEY,
		parcel_number TEXT NOT NULL,
		municipality_code TEXT NOT NULL,
		municipality_name TEXT NOT NULL,
		area_m2 DOUBLE PRECISION NOT NULL,
		boundary geometry(Polygon, 3794),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (parcel_number, municipality_code)
	)`,
	`CREATE INDEX IF NOT EXISTS parcels_boundary_gist ON cadastre.parcels USING GIST (boundary)`,
	`CREATE INDEX IF NOT EXISTS parcels_area_idx ON cadastre.parcels (area_m2)`,
	`CREATE INDEX IF NOT EXISTS parcels_muni_trgm ON cadastre.parcels USING GIN (municipality_name gin_trgm_ops)`,
	`CREATE TABLE IF NOT EXISTS cadastre.buildings (
		id BIGSERIAL PRIMARY KEY,
		parcel_id BIGINT NOT NULL REFERENCES cadastre.parcels(id) ON DELETE CASCADE,
		building_number TEXT NOT NULL DEFAULT '',
		construction_year INT,
		net_floor_area_m2 DOUBLE PRECISION,
		floor_count INT,
		type TEXT NOT NULL DEFAULT '',
		street TEXT NOT NULL DEFAULT '',
		house_number TEXT NOT NULL DEFAULT '',
		settlement TEXT NOT NULL DEFAULT '',
		post_name TEXT NOT NULL DEFAULT '',
		post_code TEXT NOT NULL DEFAULT '',
		UNIQUE (parcel_id, building_number)
	)`,
	`CREATE TABLE IF NOT EXISTS cadastre.owners (
		id BIGSERIAL PRIMARY KEY,
		parcel_id BIGINT NOT NULL REFERENCES cadastre.parcels(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT '',
		share TEXT NOT NULL DEFAULT '',
		right_type TEXT NOT NULL DEFAULT '',
		UNIQUE (parcel_id, name, right_type)
	)`,
	`CREATE TABLE IF NOT EXISTS cadastre.valuation_zones (
		id BIGSERIAL PRIMARY KEY,
		municipality_code TEXT NOT NULL,
		zone_level INT NOT NULL,
		model_code TEXT NOT NULL,
		value_per_m2 DOUBLE PRECISION NOT NULL,
		UNIQUE (municipality_code, zone_level, model_code)
	)`,
	`CREATE TABLE IF NOT EXISTS cadastre.transactions (
		id BIGSERIAL PRIMARY KEY,
		municipality_code TEXT NOT NULL,
		parcel_number TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL,
		contract_date DATE NOT NULL,
		property_type TEXT NOT NULL DEFAULT ''
	)`,
}

// EnsureSchema implements Writer.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: ensure schema")
		}
	}
	return nil
}

// ParcelIDByNumber implements Writer.
func (s *PostgresStore) ParcelIDByNumber(ctx context.Context, parcelNumber, municipalityCode string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM cadastre.parcels WHERE parcel_number = $1 AND municipality_code = $2`,
		parcelNumber, municipalityCode,
	).Scan(&id)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return 0, eris.Wrapf(ErrNotFound, "parcel %s/%s", municipalityCode, parcelNumber)
		}
		return 0, eris.Wrap(err, "postgres: parcel id by number")
	}
	return id, nil
}

// UpsertParcels implements Writer. Geometry goes through ST_GeomFromEWKB, so
// a single batch round-trip carries boundaries and attributes together.
func (s *PostgresStore) UpsertParcels(ctx context.Context, parcels []Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}
	sql := `
		INSERT INTO cadastre.parcels (parcel_number, municipality_code, municipality_name, area_m2, boundary)
		VALUES ($1, $2, $3, $4, ST_SetSRID(ST_GeomFromEWKB($5), 3794))
		ON CONFLICT (parcel_number, municipality_code) DO UPDATE SET
			municipality_name = EXCLUDED.municipality_name,
			area_m2 = EXCLUDED.area_m2,
			boundary = EXCLUDED.boundary,
			updated_at = now()
	`
	batch := &pgx.Batch{}
	for _, p := range parcels {
		wkb, err := EncodeBoundary(p.Boundary, StorageSRID)
		if err != nil {
			return 0, err
		}
		batch.Queue(sql, p.ParcelNumber, p.MunicipalityCode, p.MunicipalityName, p.AreaM2, wkb)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var n int64
	for range parcels {
		tag, err := br.Exec()
		if err != nil {
			return n, eris.Wrap(err, "postgres: upsert parcels batch")
		}
		n += tag.RowsAffected()
	}
	zap.L().Debug("postgres: upserted parcels", zap.Int64("rows", n))
	return n, nil
}

// UpsertBuildings implements Writer.
func (s *PostgresStore) UpsertBuildings(ctx context.Context, buildings []Building) (int64, error) {
	rows := make([][]any, len(buildings))
	for i, b := range buildings {
		rows[i] = []any{
			b.ParcelID, b.BuildingNumber, b.ConstructionYear, b.NetFloorAreaM2,
			b.FloorCount, b.Type, b.Street, b.HouseNumber, b.Settlement, b.PostName, b.PostCode,
		}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "cadastre.buildings",
		Columns: []string{
			"parcel_id", "building_number", "construction_year", "net_floor_area_m2",
			"floor_count", "type", "street", "house_number", "settlement", "post_name", "post_code",
		},
		ConflictKeys: []string{"parcel_id", "building_number"},
	}, rows)
}

// UpsertOwners implements Writer.
func (s *PostgresStore) UpsertOwners(ctx context.Context, owners []Owner) (int64, error) {
	rows := make([][]any, len(owners))
	for i, o := range owners {
		rows[i] = []any{o.ParcelID, o.Name, o.Type, o.Share, o.Right}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "cadastre.owners",
		Columns:      []string{"parcel_id", "name", "type", "share", "right_type"},
		ConflictKeys: []string{"parcel_id", "name", "right_type"},
	}, rows)
}

// UpsertValuationZones implements Writer.
func (s *PostgresStore) UpsertValuationZones(ctx context.Context, zones []ValuationZone) (int64, error) {
	rows := make([][]any, len(zones))
	for i, z := range zones {
		rows[i] = []any{z.MunicipalityCode, z.ZoneLevel, z.ModelCode, z.ValuePerM2}
	}
	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "cadastre.valuation_zones",
		Columns:      []string{"municipality_code", "zone_level", "model_code", "value_per_m2"},
		ConflictKeys: []string{"municipality_code", "zone_level", "model_code"},
	}, rows)
}

// InsertTransactions implements Writer. Transactions have no natural key in
// the export, so they are appended with plain COPY.
func (s *PostgresStore) InsertTransactions(ctx context.Context, txs []Transaction) (int64, error) {
	rows := make([][]any, len(txs))
	for i, t := range txs {
		rows[i] = []any{t.MunicipalityCode, t.ParcelNumber, t.Price, t.ContractDate, t.PropertyType}
	}
	return db.CopyFromSchema(ctx, s.pool, "cadastre", "transactions",
		[]string{"municipality_code", "parcel_number", "price", "contract_date", "property_type"}, rows)
}
