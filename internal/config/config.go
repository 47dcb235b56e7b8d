package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet" mapstructure:"spreadsheet"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	RefSync     RefSyncConfig     `yaml:"refsync" mapstructure:"refsync"`
	Legacy      LegacyConfig      `yaml:"legacy" mapstructure:"legacy"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// SpreadsheetConfig describes the indicator spreadsheet layout.
type SpreadsheetConfig struct {
	Path             string   `yaml:"path" mapstructure:"path"`
	Sheet            string   `yaml:"sheet" mapstructure:"sheet"`
	RegionCodeColumn string   `yaml:"region_code_column" mapstructure:"region_code_column"`
	RegionNameColumn string   `yaml:"region_name_column" mapstructure:"region_name_column"`
	YearColumn       string   `yaml:"year_column" mapstructure:"year_column"`
	NumericColumns   []string `yaml:"numeric_columns" mapstructure:"numeric_columns"`
}

// WeightConfig is one metric/weight pair of a composite index.
type WeightConfig struct {
	Metric string  `yaml:"metric" mapstructure:"metric"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
}

// ScoringConfig overrides the built-in index weight tables. Empty lists keep
// the defaults.
type ScoringConfig struct {
	Smart       []WeightConfig `yaml:"smart" mapstructure:"smart"`
	Sustainable []WeightConfig `yaml:"sustainable" mapstructure:"sustainable"`
}

// RefSyncConfig configures the reference-data synchronization.
type RefSyncConfig struct {
	SourceName        string  `yaml:"source_name" mapstructure:"source_name"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	RegionTimeoutSecs int     `yaml:"region_timeout_secs" mapstructure:"region_timeout_secs"`
	BulkTimeoutSecs   int     `yaml:"bulk_timeout_secs" mapstructure:"bulk_timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LegacyConfig configures the legacy document migration.
type LegacyConfig struct {
	Path             string `yaml:"path" mapstructure:"path"`
	SampleRegions    int    `yaml:"sample_regions" mapstructure:"sample_regions"`
	SampleIndicators int    `yaml:"sample_indicators" mapstructure:"sample_indicators"`
	SampleYear       int    `yaml:"sample_year" mapstructure:"sample_year"`
}

// DefaultNumericColumns lists the spreadsheet columns coerced to numbers.
var DefaultNumericColumns = []string{
	"ESPVIDA", "FECTOT", "IDHM", "IDHM_E", "IDHM_L", "IDHM_R", "RAZDEP",
	"T_FLFUND_TUDO", "T_FLMED_TUDO", "T_FLBAS_TUDO", "T_FUND11A13_TUDO",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("URBIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/urbix.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("spreadsheet.path", "data/dataBase.xlsx")
	v.SetDefault("spreadsheet.sheet", "")
	v.SetDefault("spreadsheet.region_code_column", "CODRM")
	v.SetDefault("spreadsheet.region_name_column", "NOME_RM")
	v.SetDefault("spreadsheet.year_column", "ANO")
	v.SetDefault("spreadsheet.numeric_columns", DefaultNumericColumns)
	v.SetDefault("refsync.source_name", "IBGE")
	v.SetDefault("refsync.base_url", "https://servicodados.ibge.gov.br/api/v1")
	v.SetDefault("refsync.user_agent", "Urbix/1.0 (Academic Research Project)")
	v.SetDefault("refsync.batch_size", 100)
	v.SetDefault("refsync.region_timeout_secs", 30)
	v.SetDefault("refsync.bulk_timeout_secs", 60)
	v.SetDefault("refsync.requests_per_second", 5.0)
	v.SetDefault("legacy.path", "data/db.json")
	v.SetDefault("legacy.sample_regions", 5)
	v.SetDefault("legacy.sample_indicators", 3)
	v.SetDefault("legacy.sample_year", 2024)

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

// Validate checks the settings a command depends on. Mode is one of
// "serve", "score", "refsync" or "legacy"; unknown modes only get the
// common checks.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		errs = append(errs, c.validateScoring()...)
	case "score":
		if c.Spreadsheet.Path == "" {
			errs = append(errs, "spreadsheet.path is required")
		}
		errs = append(errs, c.validateScoring()...)
	case "refsync":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.RefSync.BaseURL == "" {
			errs = append(errs, "refsync.base_url is required")
		}
		if c.RefSync.BatchSize <= 0 {
			errs = append(errs, "refsync.batch_size must be positive")
		}
		if c.RefSync.RegionTimeoutSecs <= 0 || c.RefSync.BulkTimeoutSecs <= 0 {
			errs = append(errs, "refsync timeouts must be positive")
		}
	case "legacy":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Legacy.Path == "" {
			errs = append(errs, "legacy.path is required")
		}
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateScoring() []string {
	var errs []string
	check := func(name string, ws []WeightConfig) {
		for _, w := range ws {
			if w.Metric == "" {
				errs = append(errs, fmt.Sprintf("scoring.%s has an entry without metric", name))
			}
			if w.Weight <= 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
				errs = append(errs, fmt.Sprintf("scoring.%s weight for %q must be positive", name, w.Metric))
			}
		}
	}
	check("smart", c.Scoring.Smart)
	check("sustainable", c.Scoring.Sustainable)
	return errs
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
