package loader

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// memWriter is an in-memory cadastre.Writer capturing everything the loader
// hands to the store.
type memWriter struct {
	mu           sync.Mutex
	parcels      []cadastre.Parcel
	buildings    []cadastre.Building
	transactions []cadastre.Transaction
	parcelIDs    map[string]int64

	upsertParcelCalls int
	upsertErr         error
}

func newMemWriter() *memWriter {
	return &memWriter{parcelIDs: make(map[string]int64)}
}

func (w *memWriter) EnsureSchema(ctx context.Context) error { return nil }

func (w *memWriter) ParcelIDByNumber(ctx context.Context, parcelNumber, municipalityCode string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.parcelIDs[parcelNumber+"|"+municipalityCode]
	if !ok {
		return 0, cadastre.ErrNotFound
	}
	return id, nil
}

func (w *memWriter) UpsertParcels(ctx context.Context, parcels []cadastre.Parcel) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.upsertParcelCalls++
	if w.upsertErr != nil {
		return 0, w.upsertErr
	}
	w.parcels = append(w.parcels, parcels...)
	return int64(len(parcels)), nil
}

func (w *memWriter) UpsertBuildings(ctx context.Context, buildings []cadastre.Building) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buildings = append(w.buildings, buildings...)
	return int64(len(buildings)), nil
}

func (w *memWriter) UpsertOwners(ctx context.Context, owners []cadastre.Owner) (int64, error) {
	return int64(len(owners)), nil
}

func (w *memWriter) UpsertValuationZones(ctx context.Context, zones []cadastre.ValuationZone) (int64, error) {
	return int64(len(zones)), nil
}

func (w *memWriter) InsertTransactions(ctx context.Context, txs []cadastre.Transaction) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transactions = append(w.transactions, txs...)
	return int64(len(txs)), nil
}

func testLoaderConfig() config.LoaderConfig {
	return config.LoaderConfig{
		BatchSize:      1000,
		ImportWorkers:  2,
		SourceEncoding: "windows-1250",
	}
}
