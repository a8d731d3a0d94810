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
	Census Census `yaml:"census" mapstructure:"census"`
	Tiger  Tiger  `yaml:"tiger" mapstructure:"tiger"`
	Places Places `yaml:"places" mapstructure:"places"`
	Cache  Cache  `yaml:"cache" mapstructure:"cache"`
	Fetch  Fetch  `yaml:"fetch" mapstructure:"fetch"`
	Render Render `yaml:"render" mapstructure:"render"`
	Log    Log    `yaml:"log" mapstructure:"log"`
}

// Census configures the Census Data API client.
type Census struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Dataset string `yaml:"dataset" mapstructure:"dataset"`
	Year    int    `yaml:"year" mapstructure:"year"`
}

// Tiger configures cartographic boundary downloads.
type Tiger struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	FTPHost    string `yaml:"ftp_host" mapstructure:"ftp_host"`
	Resolution string `yaml:"resolution" mapstructure:"resolution"`
	PreferFTP  bool   `yaml:"prefer_ftp" mapstructure:"prefer_ftp"`
}

// Places configures the CDC PLACES dataset source.
type Places struct {
	URL     string `yaml:"url" mapstructure:"url"`
	Release string `yaml:"release" mapstructure:"release"`
}

// Cache configures the local download and catalog cache.
type Cache struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
	TTLHours     int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// Fetch configures HTTP behavior for all remote sources.
type Fetch struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// Render configures choropleth output.
type Render struct {
	Width     int    `yaml:"width" mapstructure:"width"`
	Columns   int    `yaml:"columns" mapstructure:"columns"`
	Palette   string `yaml:"palette" mapstructure:"palette"`
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// Log configures logging.
type Log struct {
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
	v.SetEnvPrefix("CENSUSMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one: AutomaticEnv only surfaces an env
	// value through Unmarshal for keys viper already knows about.
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.dataset", "acs/acs5")
	v.SetDefault("census.year", 2022)
	v.SetDefault("tiger.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tiger.ftp_host", "ftp2.census.gov:21")
	v.SetDefault("tiger.resolution", "500k")
	v.SetDefault("tiger.prefer_ftp", false)
	v.SetDefault("places.url", "https://data.cdc.gov/api/views/cwsq-ngmh/rows.csv")
	v.SetDefault("places.release", "2024")
	v.SetDefault("cache.dir", "/tmp/censusmap")
	v.SetDefault("cache.database_path", "/tmp/censusmap/cache.db")
	v.SetDefault("cache.ttl_hours", 720)
	v.SetDefault("fetch.timeout_secs", 120)
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("fetch.user_agent", "censusmap/1.0")
	v.SetDefault("render.width", 980)
	v.SetDefault("render.columns", 2)
	v.SetDefault("render.palette", "viridis")
	v.SetDefault("render.output_dir", ".")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the configuration is usable for the given mode.
// Modes: "fetch" (API and boundary retrieval), "render" (choropleth
// output), "catalog" (variable lookups only).
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "fetch":
		if c.Census.Dataset == "" {
			problems = append(problems, "census.dataset is required")
		}
		if c.Census.Year < 2005 {
			problems = append(problems, "census.year must be >= 2005")
		}
		if c.Cache.Dir == "" {
			problems = append(problems, "cache.dir is required")
		}
	case "render":
		if c.Render.Columns < 1 || c.Render.Columns > 8 {
			problems = append(problems, "render.columns must be between 1 and 8")
		}
		if c.Render.Width < 100 || c.Render.Width > 4000 {
			problems = append(problems, "render.width must be between 100 and 4000")
		}
	case "catalog":
		if c.Census.Dataset == "" {
			problems = append(problems, "census.dataset is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Fetch.TimeoutSecs <= 0 {
		problems = append(problems, "fetch.timeout_secs must be > 0")
	}
	if c.Fetch.RateLimit <= 0 || c.Fetch.RateLimit > 50 {
		problems = append(problems, "fetch.rate_limit must be between 0 and 50")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg Log) error {
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
