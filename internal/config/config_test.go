package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Store.QueryTimeoutSecs)
	assert.InDelta(t, 0.01, cfg.Match.AreaTolerance, 0.0001)
	assert.InDelta(t, 0.02, cfg.Match.BuildingAreaTolerance, 0.0001)
	assert.Equal(t, 1, cfg.Match.YearTolerance)
	assert.InDelta(t, 50, cfg.Match.AreaWeight, 0.001)
	assert.InDelta(t, 30, cfg.Match.YearWeight, 0.001)
	assert.InDelta(t, 40, cfg.Match.BuildingAreaWeight, 0.001)
	assert.InDelta(t, 50, cfg.Match.MinConfidence, 0.001)
	assert.Equal(t, 3, cfg.Match.MaxResults)
	assert.Equal(t, 200, cfg.Match.MaxCandidates)
	assert.InDelta(t, 50, cfg.Spatial.SearchRadiusM, 0.001)
	assert.InDelta(t, 60, cfg.Spatial.ApproximateConfidence, 0.001)
	assert.Equal(t, 3794, cfg.Spatial.StorageSRID)
	assert.Equal(t, 4326, cfg.Spatial.OutputSRID)
	assert.Equal(t, 5000, cfg.Loader.BatchSize)
	assert.Equal(t, 4, cfg.Loader.ImportWorkers)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/test.db
log:
  level: debug
  format: console
match:
  area_tolerance: 0.05
  max_results: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/test.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.05, cfg.Match.AreaTolerance, 0.0001)
	assert.Equal(t, 10, cfg.Match.MaxResults)
	// Defaults still apply for unset values
	assert.Equal(t, 1, cfg.Match.YearTolerance)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("KATASTER_STORE_DRIVER", "postgres")
	t.Setenv("KATASTER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("KATASTER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config populated like Load with no file or env.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/kataster"
	cfg.Store.QueryTimeoutSecs = 10
	cfg.Server.Port = 8080
	cfg.Loader.BatchSize = 5000
	cfg.Loader.ImportWorkers = 4
	return cfg
}

func TestValidateQuery_Postgres(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateQuery_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateQuery_SQLite(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.sqlite_path is required")

	cfg.Store.SQLitePath = "/tmp/kataster.db"
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidateQuery_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "oracle"

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be postgres or sqlite")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateImport_WorkerBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Loader.ImportWorkers = 0
	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loader.import_workers must be between 1 and 32")

	cfg.Loader.ImportWorkers = 33
	err = cfg.Validate("import")
	assert.Error(t, err)

	cfg.Loader.ImportWorkers = 32
	assert.NoError(t, cfg.Validate("import"))
}

func TestValidateImport_BatchSize(t *testing.T) {
	cfg := validDefaults()
	cfg.Loader.BatchSize = 0

	err := cfg.Validate("import")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "loader.batch_size must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateQuery_TimeoutRequired(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.QueryTimeoutSecs = 0

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.query_timeout_secs must be > 0")
}
