package loader

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

// Shapefile attribute names in GURS parcel exports. Attribute lookup is
// case-insensitive; dBASE writers disagree on casing.
const (
	fieldParcelNumber     = "st_parcele"
	fieldMunicipalityCode = "ko_id"
	fieldMunicipalityName = "ko_ime"
	fieldAreaM2           = "povrsina"
)

// ImportParcels reads a GURS parcel boundary shapefile and upserts every
// record. Geometries are expected in D96/TM (EPSG:3794); rows with missing
// or malformed geometry are skipped when SkipBadGeoms is set and fail the
// import otherwise.
func (l *Loader) ImportParcels(ctx context.Context, shpPath string) (*Stats, error) {
	start := time.Now()
	stats := newStats()

	log := zap.L().With(
		zap.String("component", "loader.parcels"),
		zap.String("run_id", stats.RunID),
		zap.String("path", shpPath),
	)

	if err := l.writer.EnsureSchema(ctx); err != nil {
		return nil, eris.Wrap(err, "loader: ensure schema")
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := fieldIndex(reader.Fields())
	for _, required := range []string{fieldParcelNumber, fieldMunicipalityCode} {
		if _, ok := fieldIdx[required]; !ok {
			return nil, eris.Errorf("loader: shapefile missing attribute %q", required)
		}
	}

	batch := make([]cadastre.Parcel, 0, l.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.writer.UpsertParcels(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "loader: upsert parcels")
		}
		stats.Rows += n
		batch = batch[:0]
		return nil
	}

	for reader.Next() {
		if ctx.Err() != nil {
			return stats, eris.Wrap(ctx.Err(), "loader: import cancelled")
		}

		_, shape := reader.Shape()
		parcel, err := l.parcelFromRecord(reader, fieldIdx, shape)
		if err != nil {
			if l.cfg.SkipBadGeoms {
				stats.Skipped++
				log.Debug("skipping parcel record", zap.Error(err))
				continue
			}
			return stats, err
		}

		batch = append(batch, *parcel)
		if len(batch) >= l.cfg.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	log.Info("parcel import complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// parcelFromRecord maps one shapefile record to a Parcel.
func (l *Loader) parcelFromRecord(reader *shp.Reader, fieldIdx map[string]int, shape shp.Shape) (*cadastre.Parcel, error) {
	attr := func(name string) string {
		idx, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	number := attr(fieldParcelNumber)
	koID := attr(fieldMunicipalityCode)
	if number == "" || koID == "" {
		return nil, eris.New("loader: parcel record missing natural key")
	}

	boundary, err := polygonFromShape(shape)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parcel %s (%s)", number, koID)
	}

	area := 0.0
	if raw := attr(fieldAreaM2); raw != "" {
		area, err = strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: parcel %s (%s): parse area %q", number, koID, raw)
		}
	}
	if area <= 0 {
		// Registry exports occasionally carry a zero surface attribute.
		area = math.Abs(boundary.Area())
	}

	return &cadastre.Parcel{
		ParcelNumber:     number,
		MunicipalityCode: koID,
		MunicipalityName: attr(fieldMunicipalityName),
		AreaM2:           area,
		Boundary:         boundary,
	}, nil
}

// polygonFromShape converts a shapefile polygon to a geom.Polygon in the
// storage CRS. The first part is the shell; further parts become holes.
func polygonFromShape(shape shp.Shape) (*geom.Polygon, error) {
	p, ok := shape.(*shp.Polygon)
	if !ok || p == nil {
		return nil, eris.New("missing or non-polygon geometry")
	}
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil, eris.New("empty polygon geometry")
	}

	poly := geom.NewPolygon(geom.XY)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			return nil, eris.Errorf("ring %d has %d points", i, end-start)
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			return nil, eris.Wrapf(err, "ring %d", i)
		}
	}

	poly.SetSRID(cadastre.StorageSRID)
	return poly, nil
}

// fieldIndex maps lowercased dBASE attribute names to their column index.
func fieldIndex(fields []shp.Field) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		idx[strings.ToLower(name)] = i
	}
	return idx
}
