package loader

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
)

// transactionDateLayouts covers the date formats seen across ETN workbook
// vintages.
var transactionDateLayouts = []string{
	"2.1.2006",
	"02.01.2006",
	"2006-01-02",
	"2.1.2006 15:04:05",
}

// ImportTransactions reads a market transaction workbook (ETN export) and
// inserts every usable row. Transactions reference parcels by natural key
// only; they are market context, never matched against the parcel table.
func (l *Loader) ImportTransactions(ctx context.Context, xlsxPath string) (*Stats, error) {
	start := time.Now()
	stats := newStats()

	log := zap.L().With(
		zap.String("component", "loader.transactions"),
		zap.String("run_id", stats.RunID),
		zap.String("path", xlsxPath),
	)

	if err := l.writer.EnsureSchema(ctx); err != nil {
		return nil, eris.Wrap(err, "loader: ensure schema")
	}

	f, err := xlsx.OpenFile(xlsxPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open workbook %s", xlsxPath)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("loader: workbook %s has no sheets", xlsxPath)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("loader: workbook %s has no rows", xlsxPath)
	}

	col := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		col[strings.ToLower(strings.TrimSpace(cell.Value))] = i
	}
	for _, required := range []string{"ko_id", "cena", "datum"} {
		if _, ok := col[required]; !ok {
			return nil, eris.Errorf("loader: workbook missing column %q", required)
		}
	}

	batch := make([]cadastre.Transaction, 0, l.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := l.writer.InsertTransactions(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "loader: insert transactions")
		}
		stats.Rows += n
		batch = batch[:0]
		return nil
	}

	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return stats, eris.Wrap(ctx.Err(), "loader: import cancelled")
		}

		tx, err := transactionFromRow(row, col)
		if err != nil {
			stats.Skipped++
			log.Debug("skipping transaction row", zap.Error(err))
			continue
		}

		batch = append(batch, *tx)
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
	log.Info("transaction import complete",
		zap.Int64("rows", stats.Rows),
		zap.Int64("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func transactionFromRow(row *xlsx.Row, col map[string]int) (*cadastre.Transaction, error) {
	cell := func(name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[idx].Value)
	}

	koID := cell("ko_id")
	if koID == "" {
		return nil, eris.New("missing ko_id")
	}

	price, err := strconv.ParseFloat(strings.ReplaceAll(cell("cena"), ",", "."), 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse price %q", cell("cena"))
	}
	if price <= 0 {
		return nil, eris.Errorf("non-positive price %.2f", price)
	}

	date, err := parseTransactionDate(cell("datum"))
	if err != nil {
		return nil, err
	}

	return &cadastre.Transaction{
		MunicipalityCode: koID,
		ParcelNumber:     cell("st_parcele"),
		Price:            price,
		ContractDate:     date,
		PropertyType:     cell("vrsta"),
	}, nil
}

func parseTransactionDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, eris.New("missing contract date")
	}
	for _, layout := range transactionDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unparseable contract date %q", s)
}
