package cadastre

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// RectBoundary builds a rectangular parcel boundary in the storage CRS.
// Real boundaries are irregular; rectangles are enough for demos and tests.
func RectBoundary(minE, minN, width, height float64) *geom.Polygon {
	poly := geom.NewPolygonFlat(geom.XY, []float64{
		minE, minN,
		minE + width, minN,
		minE + width, minN + height,
		minE, minN + height,
		minE, minN,
	}, []int{10})
	return poly.SetSRID(3794)
}

func intPtr(v int) *int          { return &v }
func floatPtr(v float64) *float64 { return &v }

// SeedSampleData loads a small Ljubljana demo dataset: two adjacent parcels
// sharing an edge at easting 462027.1, a near-area decoy, and an outlying
// parcel in a different cadastral municipality.
func SeedSampleData(ctx context.Context, w Writer) error {
	if err := w.EnsureSchema(ctx); err != nil {
		return err
	}

	parcels := []Parcel{
		{
			ParcelNumber:     "123/4",
			MunicipalityCode: "2690",
			MunicipalityName: "Ljubljana mesto",
			AreaM2:           542,
			Boundary:         RectBoundary(462000, 101000, 27.1, 20),
		},
		{
			ParcelNumber:     "123/5",
			MunicipalityCode: "2690",
			MunicipalityName: "Ljubljana mesto",
			AreaM2:           600,
			Boundary:         RectBoundary(462027.1, 101000, 30, 20),
		},
		{
			ParcelNumber:     "45/2",
			MunicipalityCode: "2690",
			MunicipalityName: "Ljubljana mesto",
			AreaM2:           540,
			Boundary:         RectBoundary(462100, 101100, 27, 20),
		},
		{
			ParcelNumber:     "88/1",
			MunicipalityCode: "2680",
			MunicipalityName: "Šentvid nad Ljubljano",
			AreaM2:           1250,
			Boundary:         RectBoundary(459500, 104200, 50, 25),
		},
	}
	if _, err := w.UpsertParcels(ctx, parcels); err != nil {
		return eris.Wrap(err, "seed: parcels")
	}

	id1234, err := w.ParcelIDByNumber(ctx, "123/4", "2690")
	if err != nil {
		return err
	}
	id881, err := w.ParcelIDByNumber(ctx, "88/1", "2680")
	if err != nil {
		return err
	}

	buildings := []Building{
		{
			ParcelID:         id1234,
			BuildingNumber:   "101",
			ConstructionYear: intPtr(1974),
			NetFloorAreaM2:   floatPtr(185.4),
			FloorCount:       intPtr(2),
			Type:             "stanovanjska stavba",
			Street:           "Slovenska cesta",
			HouseNumber:      "15",
			Settlement:       "Ljubljana",
			PostName:         "Ljubljana",
			PostCode:         "1000",
		},
		{
			ParcelID:         id881,
			BuildingNumber:   "12",
			ConstructionYear: intPtr(1995),
			NetFloorAreaM2:   floatPtr(130),
			FloorCount:       intPtr(1),
			Type:             "stanovanjska stavba",
			Street:           "Prušnikova ulica",
			HouseNumber:      "3",
			Settlement:       "Ljubljana Šentvid",
			PostName:         "Ljubljana",
			PostCode:         "1210",
		},
	}
	if _, err := w.UpsertBuildings(ctx, buildings); err != nil {
		return eris.Wrap(err, "seed: buildings")
	}

	owners := []Owner{
		{ParcelID: id1234, Name: "Janez Novak", Type: "fizična oseba", Share: "1/2", Right: "lastninska pravica"},
		{ParcelID: id1234, Name: "Ana Novak", Type: "fizična oseba", Share: "1/2", Right: "lastninska pravica"},
	}
	if _, err := w.UpsertOwners(ctx, owners); err != nil {
		return eris.Wrap(err, "seed: owners")
	}

	zones := []ValuationZone{
		{MunicipalityCode: "2690", ZoneLevel: 5, ModelCode: "STA", ValuePerM2: 2800},
		{MunicipalityCode: "2680", ZoneLevel: 3, ModelCode: "STA", ValuePerM2: 1650},
	}
	if _, err := w.UpsertValuationZones(ctx, zones); err != nil {
		return eris.Wrap(err, "seed: valuation zones")
	}

	txs := []Transaction{
		{MunicipalityCode: "2690", ParcelNumber: "123/4", Price: 485000, ContractDate: time.Date(2019, 6, 12, 0, 0, 0, 0, time.UTC), PropertyType: "hiša"},
		{MunicipalityCode: "2690", ParcelNumber: "45/2", Price: 372000, ContractDate: time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), PropertyType: "hiša"},
	}
	if _, err := w.InsertTransactions(ctx, txs); err != nil {
		return eris.Wrap(err, "seed: transactions")
	}

	zap.L().Info("seed: sample dataset loaded",
		zap.Int("parcels", len(parcels)),
		zap.Int("buildings", len(buildings)),
	)
	return nil
}
