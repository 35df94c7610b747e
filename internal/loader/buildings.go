package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

// buildingRow is a parsed CSV record still keyed by the parcel's natural key.
type buildingRow struct {
	building     cadastre.Building
	parcelNumber string
	koID         string
}

// ImportBuildings reads a GURS building attribute CSV (semicolon-delimited,
// encoded per SourceEncoding) and attaches each building to its parcel.
// Rows referencing parcels outside the loaded extract are skipped, not
// errors; attribute extracts routinely cover more ground than the boundary
// extract being imported.
func (l *Loader) ImportBuildings(ctx context.Context, csvPath string) (*Stats, error) {
	start := time.Now()
	stats := newStats()

	log := zap.L().With(
		zap.String("component", "loader.buildings"),
		zap.String("run_id", stats.RunID),
		zap.String("path", csvPath),
	)

	if err := l.writer.EnsureSchema(ctx); err != nil {
		return nil, eris.Wrap(err, "loader: ensure schema")
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open csv %s", csvPath)
	}
	defer func() { _ = f.Close() }()

	decoded, err := decodeReader(f, l.cfg.SourceEncoding)
	if err != nil {
		return nil, err
	}

	rows, skipped, err := parseBuildingRows(ctx, decoded)
	if err != nil {
		return nil, err
	}
	stats.Skipped += skipped

	ids, err := l.resolveParcelIDs(ctx, rows)
	if err != nil {
		return stats, err
	}

	batch := make([]cadastre.Building, 0, l.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.writer.UpsertBuildings(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "loader: upsert buildings")
		}
		stats.Rows += n
		batch = batch[:0]
		return nil
	}

	for _, row := range rows {
		id, ok := ids[naturalKey(row.parcelNumber, row.koID)]
		if !ok {
			stats.Skipped++
			continue
		}
		b := row.building
		b.ParcelID = id
		batch = append(batch, b)
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
	log.Info("building import complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// parseBuildingRows reads the CSV into building rows. Records missing the
// parcel natural key are counted, not fatal.
func parseBuildingRows(ctx context.Context, r io.Reader) ([]buildingRow, int64, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "loader: read csv header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"st_parcele", "ko_id"} {
		if _, ok := col[required]; !ok {
			return nil, 0, eris.Errorf("loader: csv missing column %q", required)
		}
	}

	var rows []buildingRow
	var skipped int64
	for {
		if ctx.Err() != nil {
			return nil, skipped, eris.Wrap(ctx.Err(), "loader: import cancelled")
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, eris.Wrap(err, "loader: read csv row")
		}

		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		number := field("st_parcele")
		koID := field("ko_id")
		if number == "" || koID == "" {
			skipped++
			continue
		}

		rows = append(rows, buildingRow{
			parcelNumber: number,
			koID:         koID,
			building: cadastre.Building{
				BuildingNumber:   field("sta_sid"),
				ConstructionYear: parseIntField(field("leto_izg")),
				NetFloorAreaM2:   parseFloatField(field("neto_tloris")),
				FloorCount:       parseIntField(field("st_etaz")),
				Type:             field("dej_raba"),
				Street:           field("ulica"),
				HouseNumber:      field("hs"),
				Settlement:       field("naselje"),
				PostName:         field("posta_ime"),
				PostCode:         field("posta"),
			},
		})
	}

	return rows, skipped, nil
}

// resolveParcelIDs maps every distinct natural key in rows to a store ID.
// Keys the store does not know are simply absent from the result.
func (l *Loader) resolveParcelIDs(ctx context.Context, rows []buildingRow) (map[string]int64, error) {
	keys := make(map[string][2]string)
	for _, row := range rows {
		keys[naturalKey(row.parcelNumber, row.koID)] = [2]string{row.parcelNumber, row.koID}
	}

	ids := make(map[string]int64, len(keys))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.ImportWorkers)
	for key, parts := range keys {
		key, parts := key, parts
		g.Go(func() error {
			id, err := l.writer.ParcelIDByNumber(gCtx, parts[0], parts[1])
			if err != nil {
				if errors.Is(err, cadastre.ErrNotFound) {
					return nil
				}
				return eris.Wrapf(err, "loader: resolve parcel %s (%s)", parts[0], parts[1])
			}
			mu.Lock()
			ids[key] = id
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

func naturalKey(parcelNumber, koID string) string {
	return parcelNumber + "|" + koID
}

// decodeReader wraps r with a charset decoder matching the export encoding.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "windows-1250", "cp1250":
		return transform.NewReader(r, charmap.Windows1250.NewDecoder()), nil
	case "iso-8859-2", "latin2":
		return transform.NewReader(r, charmap.ISO8859_2.NewDecoder()), nil
	default:
		return nil, eris.Errorf("loader: unsupported source encoding %q", encoding)
	}
}

func parseIntField(s string) *int {
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}

func parseFloatField(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || v == 0 {
		return nil
	}
	return &v
}
