package cadastre

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var parcelRowColumns = []string{"id", "parcel_number", "municipality_code", "municipality_name", "area_m2", "boundary"}

func testWKB(t *testing.T) []byte {
	t.Helper()
	data, err := EncodeBoundary(RectBoundary(462000, 101000, 27.1, 20), 3794)
	require.NoError(t, err)
	return data
}

func TestPostgresFindCandidates(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	rows := pgxmock.NewRows(parcelRowColumns).
		AddRow(int64(1), "123/4", "2690", "Ljubljana mesto", 542.0, testWKB(t)).
		AddRow(int64(3), "45/2", "2690", "Ljubljana mesto", 540.0, testWKB(t))
	pool.ExpectQuery("FROM cadastre.parcels").
		WithArgs(536.58, 547.42, 542.0, 10).
		WillReturnRows(rows)

	s := NewPostgresWithPool(pool)
	got, err := s.FindCandidates(context.Background(), CandidateFilter{
		AreaM2:  542,
		AreaMin: 536.58,
		AreaMax: 547.42,
		Limit:   10,
	})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "123/4", got[0].Parcel.ParcelNumber)
	require.NotNil(t, got[0].Parcel.Boundary)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresFindCandidatesWithSettlement(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	rows := pgxmock.NewRows(parcelRowColumns).
		AddRow(int64(1), "123/4", "2690", "Ljubljana mesto", 542.0, []byte(nil))
	pool.ExpectQuery("similarity").
		WithArgs(536.58, 547.42, 542.0, "Ljubljana", 0.8, 10).
		WillReturnRows(rows)

	s := NewPostgresWithPool(pool)
	got, err := s.FindCandidates(context.Background(), CandidateFilter{
		AreaM2:               542,
		AreaMin:              536.58,
		AreaMax:              547.42,
		Settlement:           "Ljubljana",
		SettlementSimilarity: 0.8,
		Limit:                10,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Nil(t, got[0].Parcel.Boundary)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresFindCandidatesWithBuildings(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	parcels := pgxmock.NewRows(parcelRowColumns).
		AddRow(int64(1), "123/4", "2690", "Ljubljana mesto", 542.0, []byte(nil))
	pool.ExpectQuery("FROM cadastre.parcels").
		WithArgs(536.58, 547.42, 542.0).
		WillReturnRows(parcels)

	year := 1974
	floor := 185.4
	count := 2
	buildings := pgxmock.NewRows([]string{
		"id", "parcel_id", "building_number", "construction_year", "net_floor_area_m2",
		"floor_count", "type", "street", "house_number", "settlement", "post_name", "post_code",
	}).AddRow(int64(10), int64(1), "101", &year, &floor, &count,
		"stanovanjska stavba", "Slovenska cesta", "15", "Ljubljana", "Ljubljana", "1000")
	pool.ExpectQuery("FROM cadastre.buildings").
		WithArgs([]int64{1}).
		WillReturnRows(buildings)

	s := NewPostgresWithPool(pool)
	got, err := s.FindCandidates(context.Background(), CandidateFilter{
		AreaM2:        542,
		AreaMin:       536.58,
		AreaMax:       547.42,
		WithBuildings: true,
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	require.Len(t, got[0].Buildings, 1)
	b := got[0].Buildings[0]
	require.NotNil(t, b.ConstructionYear)
	assert.Equal(t, 1974, *b.ConstructionYear)
	assert.Equal(t, "Slovenska cesta 15, Ljubljana, 1000 Ljubljana", b.FullAddress())
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresContainingParcels(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	rows := pgxmock.NewRows(parcelRowColumns).
		AddRow(int64(1), "123/4", "2690", "Ljubljana mesto", 542.0, testWKB(t)).
		AddRow(int64(2), "123/5", "2690", "Ljubljana mesto", 600.0, testWKB(t))
	pool.ExpectQuery("ST_Covers").
		WithArgs(462027.1, 101010.0).
		WillReturnRows(rows)

	s := NewPostgresWithPool(pool)
	got, err := s.ContainingParcels(context.Background(), 462027.1, 101010)
	require.NoError(t, err)

	require.Len(t, got, 2, "shared-edge point reports both parcels")
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresNearestParcel(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	rows := pgxmock.NewRows(append(parcelRowColumns, "distance")).
		AddRow(int64(2), "123/5", "2690", "Ljubljana mesto", 600.0, testWKB(t), 12.5)
	pool.ExpectQuery("ST_DWithin").
		WithArgs(462067.1, 101010.0, 50.0).
		WillReturnRows(rows)

	s := NewPostgresWithPool(pool)
	p, dist, err := s.NearestParcel(context.Background(), 462067.1, 101010, 50)
	require.NoError(t, err)

	require.NotNil(t, p)
	assert.Equal(t, "123/5", p.ParcelNumber)
	assert.InDelta(t, 12.5, dist, 0.001)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresNearestParcelNothingInRange(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery("ST_DWithin").
		WithArgs(400000.0, 50000.0, 50.0).
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresWithPool(pool)
	p, dist, err := s.NearestParcel(context.Background(), 400000, 50000, 50)
	require.NoError(t, err, "nothing in range is not an error")
	assert.Nil(t, p)
	assert.Zero(t, dist)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresGetParcelNotFound(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery("FROM cadastre.parcels").
		WithArgs(int64(999)).
		WillReturnError(pgx.ErrNoRows)

	s := NewPostgresWithPool(pool)
	_, err = s.GetParcel(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresGetParcelDetail(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectQuery("FROM cadastre.parcels").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(parcelRowColumns).
			AddRow(int64(1), "123/4", "2690", "Ljubljana mesto", 542.0, []byte(nil)))
	pool.ExpectQuery("FROM cadastre.buildings").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "parcel_id", "building_number", "construction_year", "net_floor_area_m2",
			"floor_count", "type", "street", "house_number", "settlement", "post_name", "post_code",
		}))
	pool.ExpectQuery("FROM cadastre.owners").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "parcel_id", "name", "type", "share", "right_type"}).
			AddRow(int64(1), int64(1), "Janez Novak", "fizična oseba", "1/2", "lastninska pravica"))
	pool.ExpectQuery("FROM cadastre.valuation_zones").
		WithArgs("2690").
		WillReturnRows(pgxmock.NewRows([]string{"id", "municipality_code", "zone_level", "model_code", "value_per_m2"}).
			AddRow(int64(1), "2690", 5, "STA", 2800.0))

	s := NewPostgresWithPool(pool)
	detail, err := s.GetParcelDetail(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "123/4", detail.Parcel.ParcelNumber)
	assert.Empty(t, detail.Buildings)
	require.Len(t, detail.Owners, 1)
	assert.Equal(t, "lastninska pravica", detail.Owners[0].Right)
	require.Len(t, detail.Zones, 1)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestPostgresPing(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()

	pool.ExpectPing()
	s := NewPostgresWithPool(pool)
	assert.NoError(t, s.Ping(context.Background()))
}
