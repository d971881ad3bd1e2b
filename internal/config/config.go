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
	Provider  string          `yaml:"provider" mapstructure:"provider"`
	Borsdata  BorsdataConfig  `yaml:"borsdata" mapstructure:"borsdata"`
	Refinitiv RefinitivConfig `yaml:"refinitiv" mapstructure:"refinitiv"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Screen    ScreenConfig    `yaml:"screen" mapstructure:"screen"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// BorsdataConfig holds Borsdata API settings.
type BorsdataConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RefinitivConfig holds Datastream Web Service credentials. Universe and
// KPIs point at YAML files listing the screenable instruments and the
// datatype mnemonics, since DSWS has no listing endpoints.
type RefinitivConfig struct {
	Username     string `yaml:"username" mapstructure:"username"`
	Password     string `yaml:"password" mapstructure:"password"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UniverseFile string `yaml:"universe_file" mapstructure:"universe_file"`
	KPIFile      string `yaml:"kpi_file" mapstructure:"kpi_file"`
}

// StoreConfig configures the cache database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CacheConfig configures series cache expiry.
type CacheConfig struct {
	TTLHours int `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// ScreenConfig sets screening run defaults.
type ScreenConfig struct {
	Parallelism      int `yaml:"parallelism" mapstructure:"parallelism"`
	FetchParallelism int `yaml:"fetch_parallelism" mapstructure:"fetch_parallelism"`
	ProgressEvery    int `yaml:"progress_every" mapstructure:"progress_every"`
}

// ServerConfig configures the screening API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("provider", "borsdata")
	v.SetDefault("borsdata.base_url", "https://apiservice.borsdata.se/v1")
	v.SetDefault("refinitiv.base_url", "https://product.datastream.com/dswsclient/V1/DSService.svc/rest")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "screener.db")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("screen.parallelism", 4)
	v.SetDefault("screen.fetch_parallelism", 10)
	v.SetDefault("screen.progress_every", 100)
	v.SetDefault("server.port", 8080)
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
