package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "IMAGESORT"

type Config struct {
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Model    ModelConfig    `mapstructure:"model" yaml:"model"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Cache    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	Valkey   ValkeyConfig   `mapstructure:"valkey" yaml:"valkey"`
}

type ServerConfig struct {
	Addr           string  `mapstructure:"addr" yaml:"addr"`
	MaxUploadBytes int64   `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // analyze requests per second, 0 = unlimited
	RateBurst      int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console | json
}

type ModelConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Dir         string        `mapstructure:"dir" yaml:"dir"`
	HubRepo     string        `mapstructure:"hub_repo" yaml:"hub_repo"`
	ONNXFile    string        `mapstructure:"onnx_file" yaml:"onnx_file"`
	LabelsFile  string        `mapstructure:"labels_file" yaml:"labels_file"`
	ORTLibrary  string        `mapstructure:"ort_library" yaml:"ort_library"`
	InputName   string        `mapstructure:"input_name" yaml:"input_name"`
	OutputName  string        `mapstructure:"output_name" yaml:"output_name"`
	Layout      string        `mapstructure:"layout" yaml:"layout"` // nhwc | nchw
	InputSize   int           `mapstructure:"input_size" yaml:"input_size"`
	LoadTimeout time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
	Preload     bool          `mapstructure:"preload" yaml:"preload"`
}

type AnalysisConfig struct {
	TopN          int           `mapstructure:"top_n" yaml:"top_n"`
	FallbackDelay time.Duration `mapstructure:"fallback_delay" yaml:"fallback_delay"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // file | sqlite | valkey | memory
	Path    string `mapstructure:"path" yaml:"path"`
	Key     string `mapstructure:"key" yaml:"key"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // memory | valkey | none
}

type ValkeyConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"-"`
	DB       int    `mapstructure:"db" yaml:"db"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("model.enabled", true)
	v.SetDefault("model.dir", "./models")
	v.SetDefault("model.hub_repo", "")
	v.SetDefault("model.onnx_file", "")
	v.SetDefault("model.labels_file", "")
	v.SetDefault("model.ort_library", "")
	v.SetDefault("model.input_name", "input")
	v.SetDefault("model.output_name", "output")
	v.SetDefault("model.layout", "nhwc")
	v.SetDefault("model.input_size", 224)
	v.SetDefault("model.load_timeout", 2*time.Minute)
	v.SetDefault("model.preload", true)

	v.SetDefault("analysis.top_n", 5)
	v.SetDefault("analysis.fallback_delay", 1500*time.Millisecond)
	v.SetDefault("analysis.cache_ttl", time.Hour)

	v.SetDefault("history.backend", "file")
	v.SetDefault("history.path", "./data")
	v.SetDefault("history.key", "imagesort:history")

	v.SetDefault("cache.backend", "memory")

	v.SetDefault("valkey.address", "localhost:6379")
	v.SetDefault("valkey.password", "")
	v.SetDefault("valkey.db", 0)
	v.SetDefault("valkey.tls", false)
}

// NewViper returns a viper instance with defaults, env overrides
// (IMAGESORT_SERVER_ADDR, ...) and, when cfgFile is set or
// ~/.imagesort/config.yaml exists, the config file. A .env file in the
// working directory is loaded into the environment first.
func NewViper(cfgFile string) (*viper.Viper, error) {
	if err := gotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".imagesort"))
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("imagesort")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values and impossible numbers.
func (c Config) Validate() error {
	switch c.History.Backend {
	case "file", "sqlite", "valkey", "memory":
	default:
		return fmt.Errorf("history.backend: unknown backend %q", c.History.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "valkey", "none":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	switch strings.ToLower(c.Model.Layout) {
	case "nhwc", "nchw":
	default:
		return fmt.Errorf("model.layout: must be nhwc or nchw, got %q", c.Model.Layout)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server.max_upload_bytes must be positive")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if c.Analysis.TopN <= 0 {
		return errors.New("analysis.top_n must be positive")
	}
	return nil
}
