package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks that the configuration required for the given mode is
// present and internally consistent. Matching tolerances and weights are
// validated separately by match.ValidateConfig once at startup.
func (c *Config) Validate(mode string) error {
	var errs []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				errs = append(errs, "store.sqlite_path is required for the sqlite driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.QueryTimeoutSecs <= 0 {
			errs = append(errs, "store.query_timeout_secs must be > 0")
		}
	}

	switch mode {
	case "query":
		requireStore()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0")
		}
	case "import":
		requireStore()
		if c.Loader.BatchSize <= 0 {
			errs = append(errs, "loader.batch_size must be > 0")
		}
		if c.Loader.ImportWorkers < 1 || c.Loader.ImportWorkers > 32 {
			errs = append(errs, "loader.import_workers must be between 1 and 32")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
