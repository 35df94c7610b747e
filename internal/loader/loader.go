// Package loader imports GURS registry exports into the cadastral store:
// parcel boundary shapefiles, building attribute CSVs and market transaction
// workbooks, with an optional FTP fetch of the export bundles.
package loader

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/gurs-tools/kataster-cli/internal/cadastre"
	"github.com/gurs-tools/kataster-cli/internal/config"
	"github.com/gurs-tools/kataster-cli/internal/resilience"
)

const (
	defaultBatchSize     = 5000
	defaultImportWorkers = 2
	defaultEncoding      = "windows-1250"
)

// Loader drives registry export imports against a store writer.
type Loader struct {
	writer  cadastre.Writer
	cfg     config.LoaderConfig
	breaker *resilience.CircuitBreaker
}

// New creates a Loader. Zero config fields fall back to defaults.
func New(writer cadastre.Writer, cfg config.LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.ImportWorkers <= 0 {
		cfg.ImportWorkers = defaultImportWorkers
	}
	if cfg.SourceEncoding == "" {
		cfg.SourceEncoding = defaultEncoding
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "kataster")
	}
	return &Loader{
		writer:  writer,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(cfg.FTPFailureThreshold, cfg.FTPResetSecs)),
	}
}

// Stats summarizes one import run.
type Stats struct {
	RunID    string        `json:"run_id"`
	Rows     int64         `json:"rows"`
	Skipped  int64         `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

func newStats() *Stats {
	return &Stats{RunID: uuid.NewString()}
}
