// Package config loads application configuration from file and environment
// and owns global logger initialization.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Match   MatchConfig   `yaml:"match" mapstructure:"match"`
	Spatial SpatialConfig `yaml:"spatial" mapstructure:"spatial"`
	Loader  LoaderConfig  `yaml:"loader" mapstructure:"loader"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// MonitorConfig configures background store health checks in serve mode.
type MonitorConfig struct {
	CheckIntervalSecs  int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureThreshold   int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	LatencyThresholdMs float64 `yaml:"latency_threshold_ms" mapstructure:"latency_threshold_ms"`
	WebhookURL         string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// StoreConfig configures the cadastral data store backend.
type StoreConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath       string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns         int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns         int32  `yaml:"min_conns" mapstructure:"min_conns"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`

	// Retry policy for transient store failures on the read path.
	RetryAttempts  int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// MatchConfig holds the tolerances, weights and thresholds used by candidate
// generation and scoring. It is validated once at startup and passed
// explicitly into matching calls; no scoring code reads ambient settings.
type MatchConfig struct {
	// Relative tolerances (fractions) and the year tolerance (absolute).
	AreaTolerance         float64 `yaml:"area_tolerance" mapstructure:"area_tolerance"`
	BuildingAreaTolerance float64 `yaml:"building_area_tolerance" mapstructure:"building_area_tolerance"`
	YearTolerance         int     `yaml:"year_tolerance" mapstructure:"year_tolerance"`

	// Per-attribute weights.
	AreaWeight         float64 `yaml:"area_weight" mapstructure:"area_weight"`
	YearWeight         float64 `yaml:"year_weight" mapstructure:"year_weight"`
	BuildingAreaWeight float64 `yaml:"building_area_weight" mapstructure:"building_area_weight"`
	SettlementWeight   float64 `yaml:"settlement_weight" mapstructure:"settlement_weight"`
	StreetWeight       float64 `yaml:"street_weight" mapstructure:"street_weight"`
	PropertyTypeWeight float64 `yaml:"property_type_weight" mapstructure:"property_type_weight"`

	// Text similarity below MinSimilarity scores zero. SettlementSimilarity
	// is the candidate prefilter cutoff, a performance trade-off rather than
	// a correctness boundary.
	MinSimilarity        float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	SettlementSimilarity float64 `yaml:"settlement_similarity" mapstructure:"settlement_similarity"`

	// Result shaping.
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxResults    int     `yaml:"max_results" mapstructure:"max_results"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`

	// ScoreWorkers > 1 scores candidate partitions concurrently. Output is
	// sorted and deduplicated after the join, so results do not depend on
	// worker interleaving.
	ScoreWorkers int `yaml:"score_workers" mapstructure:"score_workers"`
}

// SpatialConfig configures point-to-parcel resolution.
type SpatialConfig struct {
	SearchRadiusM         float64 `yaml:"search_radius_m" mapstructure:"search_radius_m"`
	ApproximateConfidence float64 `yaml:"approximate_confidence" mapstructure:"approximate_confidence"`
	StorageSRID           int     `yaml:"storage_srid" mapstructure:"storage_srid"`
	OutputSRID            int     `yaml:"output_srid" mapstructure:"output_srid"`
}

// LoaderConfig configures registry export imports.
type LoaderConfig struct {
	FTPHost        string  `yaml:"ftp_host" mapstructure:"ftp_host"`
	FTPUser        string  `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword    string  `yaml:"ftp_password" mapstructure:"ftp_password"`
	FTPDir         string  `yaml:"ftp_dir" mapstructure:"ftp_dir"`
	// DownloadRate caps FTP downloads in MiB/s. Zero disables the cap.
	DownloadRate float64 `yaml:"download_rate" mapstructure:"download_rate"`
	TempDir        string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	BatchSize      int     `yaml:"batch_size" mapstructure:"batch_size"`
	ImportWorkers  int     `yaml:"import_workers" mapstructure:"import_workers"`
	SkipBadGeoms   bool    `yaml:"skip_bad_geoms" mapstructure:"skip_bad_geoms"`
	SourceEncoding string  `yaml:"source_encoding" mapstructure:"source_encoding"`

	// Circuit breaker thresholds for the FTP mirror.
	FTPFailureThreshold int `yaml:"ftp_failure_threshold" mapstructure:"ftp_failure_threshold"`
	FTPResetSecs        int `yaml:"ftp_reset_secs" mapstructure:"ftp_reset_secs"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KATASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "kataster.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.query_timeout_secs", 10)
	v.SetDefault("store.retry_attempts", 3)
	v.SetDefault("store.retry_backoff_ms", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("match.area_tolerance", 0.01)
	v.SetDefault("match.building_area_tolerance", 0.02)
	v.SetDefault("match.year_tolerance", 1)
	v.SetDefault("match.area_weight", 50)
	v.SetDefault("match.year_weight", 30)
	v.SetDefault("match.building_area_weight", 40)
	v.SetDefault("match.settlement_weight", 5)
	v.SetDefault("match.street_weight", 15)
	v.SetDefault("match.property_type_weight", 10)
	v.SetDefault("match.min_similarity", 0.6)
	v.SetDefault("match.settlement_similarity", 0.8)
	v.SetDefault("match.min_confidence", 50)
	v.SetDefault("match.max_results", 3)
	v.SetDefault("match.max_candidates", 200)
	v.SetDefault("match.score_workers", 1)
	v.SetDefault("spatial.search_radius_m", 50)
	v.SetDefault("spatial.approximate_confidence", 60)
	v.SetDefault("spatial.storage_srid", 3794)
	v.SetDefault("spatial.output_srid", 4326)
	v.SetDefault("monitor.check_interval_secs", 60)
	v.SetDefault("monitor.failure_threshold", 3)
	v.SetDefault("monitor.latency_threshold_ms", 500)
	v.SetDefault("loader.download_rate", 2)
	v.SetDefault("loader.temp_dir", "/tmp/kataster")
	v.SetDefault("loader.batch_size", 5000)
	v.SetDefault("loader.import_workers", 4)
	v.SetDefault("loader.skip_bad_geoms", true)
	v.SetDefault("loader.source_encoding", "windows-1250")
	v.SetDefault("loader.ftp_failure_threshold", 5)
	v.SetDefault("loader.ftp_reset_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
