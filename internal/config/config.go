package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the fleetwatch service.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Monitor MonitorConfig `yaml:"monitor"`
	Build   BuildConfig   `yaml:"build"`
	AI      AIConfig      `yaml:"ai"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// MonitorConfig configures access to the monitoring backend APIs.
type MonitorConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	APIToken     string        `yaml:"apiToken"`
	ServicesPath string        `yaml:"servicesPath"`
	MetricsPath  string        `yaml:"metricsPath"`
	ProblemsPath string        `yaml:"problemsPath"`
	Timeout      time.Duration `yaml:"timeout"`
	ServiceLimit int           `yaml:"serviceLimit"`
	ProblemLimit int           `yaml:"problemLimit"`
}

// BuildConfig controls knowledge-base construction.
type BuildConfig struct {
	Timeframe       string        `yaml:"timeframe"`
	MaxWorkers      int           `yaml:"maxWorkers"`
	BatchPause      time.Duration `yaml:"batchPause"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// AIConfig configures the optional semantic parser / answer generator.
type AIConfig struct {
	Enabled     bool          `yaml:"enabled"`
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// CacheConfig controls Redis/Valkey-backed caching of parsed queries.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	ParsedQueryTTL time.Duration `yaml:"parsedQueryTTL"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FLEETWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Monitor: MonitorConfig{
			ServicesPath: "/api/v2/entities/services",
			MetricsPath:  "/api/v2/metrics/query",
			ProblemsPath: "/api/v2/problems",
			Timeout:      10 * time.Second,
			ServiceLimit: 200,
			ProblemLimit: 500,
		},
		Build: BuildConfig{
			Timeframe:  "2h",
			MaxWorkers: 10,
			BatchPause: 500 * time.Millisecond,
		},
		AI: AIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   300,
			Temperature: 0.3,
			Timeout:     30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:        false,
			DialTimeout:    2 * time.Second,
			ReadTimeout:    500 * time.Millisecond,
			WriteTimeout:   500 * time.Millisecond,
			ParsedQueryTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLEETWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FLEETWATCH_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FLEETWATCH_MONITOR_BASE_URL"); v != "" {
		cfg.Monitor.BaseURL = v
	}
	if v := os.Getenv("FLEETWATCH_MONITOR_API_TOKEN"); v != "" {
		cfg.Monitor.APIToken = v
	}
	if v := os.Getenv("FLEETWATCH_MONITOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Timeout = d
		}
	}
	if v := os.Getenv("FLEETWATCH_BUILD_TIMEFRAME"); v != "" {
		cfg.Build.Timeframe = v
	}
	if v := os.Getenv("FLEETWATCH_BUILD_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Build.MaxWorkers = n
		}
	}
	if v := os.Getenv("FLEETWATCH_BUILD_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Build.RefreshInterval = d
		}
	}
	if v := os.Getenv("FLEETWATCH_AI_ENABLED"); v != "" {
		cfg.AI.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FLEETWATCH_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("FLEETWATCH_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("FLEETWATCH_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("FLEETWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FLEETWATCH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("FLEETWATCH_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("FLEETWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("FLEETWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("FLEETWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLEETWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
