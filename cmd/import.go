package main

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/loader"
)

var importFTP bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import GURS registry exports into the store",
}

var importParcelsCmd = &cobra.Command{
	Use:   "parcels <shapefile-or-remote-name>",
	Short: "Import parcel boundaries from a GURS shapefile export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], ".shp", func(l *loader.Loader, path string) (*loader.Stats, error) {
			return l.ImportParcels(cmd.Context(), path)
		})
	},
}

var importBuildingsCmd = &cobra.Command{
	Use:   "buildings <csv-or-remote-name>",
	Short: "Import building attributes from a REN CSV export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], ".csv", func(l *loader.Loader, path string) (*loader.Stats, error) {
			return l.ImportBuildings(cmd.Context(), path)
		})
	},
}

var importTransactionsCmd = &cobra.Command{
	Use:   "transactions <xlsx-or-remote-name>",
	Short: "Import market transactions from an ETN workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], ".xlsx", func(l *loader.Loader, path string) (*loader.Stats, error) {
			return l.ImportTransactions(cmd.Context(), path)
		})
	},
}

// runImport resolves the input to local files, fetching from the FTP mirror
// when --ftp is set, and runs the import over every file matching wantExt.
func runImport(cmd *cobra.Command, input, wantExt string, run func(*loader.Loader, string) (*loader.Stats, error)) error {
	if err := cfg.Validate("import"); err != nil {
		return err
	}

	writer, closeFn, err := initWriter(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	l := loader.New(writer, cfg.Loader)

	paths := []string{input}
	if importFTP {
		paths, err = l.FetchExport(cmd.Context(), input)
		if err != nil {
			return err
		}
	}

	var ran int
	for _, path := range paths {
		if importFTP && !hasExt(path, wantExt) {
			continue
		}
		stats, err := run(l, path)
		if err != nil {
			return err
		}
		ran++
		zap.L().Info("import finished",
			zap.String("path", path),
			zap.String("run_id", stats.RunID),
			zap.Int64("rows", stats.Rows),
			zap.Int64("skipped", stats.Skipped),
		)
	}
	if ran == 0 {
		return eris.Errorf("no %s files found in fetched bundle", wantExt)
	}
	return nil
}

func hasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

func init() {
	importCmd.PersistentFlags().BoolVar(&importFTP, "ftp", false, "fetch the export from the configured FTP mirror first")
	importCmd.AddCommand(importParcelsCmd, importBuildingsCmd, importTransactionsCmd)
	rootCmd.AddCommand(importCmd)
}
