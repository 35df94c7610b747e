package cadastre

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

// ParcelIDByNumber implements Writer.
func (s *SQLiteStore) ParcelIDByNumber(ctx context.Context, parcelNumber, municipalityCode string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM parcels WHERE parcel_number = ? AND municipality_code = ?`,
		parcelNumber, municipalityCode,
	).Scan(&id)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return 0, eris.Wrapf(ErrNotFound, "parcel %s/%s", municipalityCode, parcelNumber)
		}
		return 0, eris.Wrap(err, "sqlite: parcel id by number")
	}
	return id, nil
}

// UpsertParcels implements Writer. Bounding boxes are derived from the
// boundary at write time so the read path can prefilter without decoding
// geometry.
func (s *SQLiteStore) UpsertParcels(ctx context.Context, parcels []Parcel) (int64, error) {
	if len(parcels) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO parcels (parcel_number, municipality_code, municipality_name, area_m2, boundary, min_e, min_n, max_e, max_n)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (parcel_number, municipality_code) DO UPDATE SET
				municipality_name = excluded.municipality_name,
				area_m2 = excluded.area_m2,
				boundary = excluded.boundary,
				min_e = excluded.min_e,
				min_n = excluded.min_n,
				max_e = excluded.max_e,
				max_n = excluded.max_n
		`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare parcel upsert")
		}
		defer stmt.Close()

		var n int64
		for _, p := range parcels {
			wkb, err := EncodeBoundary(p.Boundary, StorageSRID)
			if err != nil {
				return n, err
			}
			var minE, minN, maxE, maxN any
			if p.Boundary != nil {
				b := p.Boundary.Bounds()
				minE, minN, maxE, maxN = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
			}
			if _, err := stmt.ExecContext(ctx,
				p.ParcelNumber, p.MunicipalityCode, p.MunicipalityName, p.AreaM2,
				wkb, minE, minN, maxE, maxN,
			); err != nil {
				return n, eris.Wrap(err, "sqlite: upsert parcel")
			}
			n++
		}
		return n, nil
	})
}

// UpsertBuildings implements Writer.
func (s *SQLiteStore) UpsertBuildings(ctx context.Context, buildings []Building) (int64, error) {
	if len(buildings) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO buildings (parcel_id, building_number, construction_year, net_floor_area_m2,
			                       floor_count, type, street, house_number, settlement, post_name, post_code)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (parcel_id, building_number) DO UPDATE SET
				construction_year = excluded.construction_year,
				net_floor_area_m2 = excluded.net_floor_area_m2,
				floor_count = excluded.floor_count,
				type = excluded.type,
				street = excluded.street,
				house_number = excluded.house_number,
				settlement = excluded.settlement,
				post_name = excluded.post_name,
				post_code = excluded.post_code
		`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare building upsert")
		}
		defer stmt.Close()

		var n int64
		for _, b := range buildings {
			if _, err := stmt.ExecContext(ctx,
				b.ParcelID, b.BuildingNumber, b.ConstructionYear, b.NetFloorAreaM2,
				b.FloorCount, b.Type, b.Street, b.HouseNumber, b.Settlement, b.PostName, b.PostCode,
			); err != nil {
				return n, eris.Wrap(err, "sqlite: upsert building")
			}
			n++
		}
		return n, nil
	})
}

// UpsertOwners implements Writer.
func (s *SQLiteStore) UpsertOwners(ctx context.Context, owners []Owner) (int64, error) {
	if len(owners) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO owners (parcel_id, name, type, share, right_type)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (parcel_id, name, right_type) DO UPDATE SET
				type = excluded.type,
				share = excluded.share
		`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare owner upsert")
		}
		defer stmt.Close()

		var n int64
		for _, o := range owners {
			if _, err := stmt.ExecContext(ctx, o.ParcelID, o.Name, o.Type, o.Share, o.Right); err != nil {
				return n, eris.Wrap(err, "sqlite: upsert owner")
			}
			n++
		}
		return n, nil
	})
}

// UpsertValuationZones implements Writer.
func (s *SQLiteStore) UpsertValuationZones(ctx context.Context, zones []ValuationZone) (int64, error) {
	if len(zones) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO valuation_zones (municipality_code, zone_level, model_code, value_per_m2)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (municipality_code, zone_level, model_code) DO UPDATE SET
				value_per_m2 = excluded.value_per_m2
		`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare zone upsert")
		}
		defer stmt.Close()

		var n int64
		for _, z := range zones {
			if _, err := stmt.ExecContext(ctx, z.MunicipalityCode, z.ZoneLevel, z.ModelCode, z.ValuePerM2); err != nil {
				return n, eris.Wrap(err, "sqlite: upsert zone")
			}
			n++
		}
		return n, nil
	})
}

// InsertTransactions implements Writer.
func (s *SQLiteStore) InsertTransactions(ctx context.Context, txs []Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) (int64, error) {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (municipality_code, parcel_number, price, contract_date, property_type)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: prepare transaction insert")
		}
		defer stmt.Close()

		var n int64
		for _, t := range txs {
			if _, err := stmt.ExecContext(ctx, t.MunicipalityCode, t.ParcelNumber, t.Price, t.ContractDate, t.PropertyType); err != nil {
				return n, eris.Wrap(err, "sqlite: insert transaction")
			}
			n++
		}
		return n, nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) (int64, error)) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	n, err := fn(tx)
	if err != nil {
		tx.Rollback()
		return n, err
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit tx")
	}
	return n, nil
}
