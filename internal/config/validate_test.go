package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:           "sqlite",
			SQLitePath:       "kataster.db",
			QueryTimeoutSecs: 10,
		},
		Server: ServerConfig{Port: 8080},
		Loader: LoaderConfig{BatchSize: 5000, ImportWorkers: 4},
	}
}

func TestValidateModes(t *testing.T) {
	for _, mode := range []string{"query", "serve", "import"} {
		assert.NoError(t, validConfig().Validate(mode), mode)
	}
}

func TestValidateUnknownModeRejected(t *testing.T) {
	require.Error(t, validConfig().Validate("replicate"))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantSub string
	}{
		{"unknown driver", "query", func(c *Config) { c.Store.Driver = "oracle" }, "store.driver"},
		{"postgres without url", "query", func(c *Config) { c.Store.Driver = "postgres"; c.Store.DatabaseURL = "" }, "database_url"},
		{"sqlite without path", "query", func(c *Config) { c.Store.SQLitePath = "" }, "sqlite_path"},
		{"zero timeout", "query", func(c *Config) { c.Store.QueryTimeoutSecs = 0 }, "query_timeout_secs"},
		{"bad port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero batch", "import", func(c *Config) { c.Loader.BatchSize = 0 }, "batch_size"},
		{"too many workers", "import", func(c *Config) { c.Loader.ImportWorkers = 64 }, "import_workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate(tt.mode)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}
