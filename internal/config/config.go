// Package config provides unified configuration loading for VeriLabel.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Providers     ProvidersConfig     `yaml:"providers"`
	OCR           OCRConfig           `yaml:"ocr"`
	Cache         CacheConfig         `yaml:"cache"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	APIKey           string        `yaml:"api_key"` // empty disables auth
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ProvidersConfig holds per-backend OCR provider settings. A provider whose
// required credential is absent is disabled, never a startup failure.
type ProvidersConfig struct {
	CloudVision CloudVisionConfig `yaml:"cloud_vision"`
	CloudOCR    CloudOCRConfig    `yaml:"cloud_ocr"`
	LocalModel  LocalModelConfig  `yaml:"local_model"`
}

// CloudVisionConfig holds settings for the Gemini-style vision backend.
type CloudVisionConfig struct {
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CloudOCRConfig holds settings for the OCR.space-style HTTP OCR backend.
type CloudOCRConfig struct {
	APIKey   string        `yaml:"api_key"`
	Endpoint string        `yaml:"endpoint"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LocalModelConfig holds settings for the Ollama-style local model server.
type LocalModelConfig struct {
	Endpoint           string        `yaml:"endpoint"`
	Model              string        `yaml:"model"`
	Timeout            time.Duration `yaml:"timeout"`
	EnableTesseract    bool          `yaml:"enable_tesseract"`
	TesseractLanguages []string      `yaml:"tesseract_languages"`
}

// OCRConfig holds engine-level orchestration settings.
type OCRConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	BaseDelay     time.Duration `yaml:"base_delay"`
	Workers       int           `yaml:"workers"`
	DPI           int           `yaml:"dpi"`
	PageGrace     time.Duration `yaml:"page_grace"`
	CacheCapacity int           `yaml:"cache_capacity"`
}

// CacheConfig holds document-cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// StorageConfig holds verified-label store settings.
type StorageConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     60 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   16 << 20, // 16 MiB
		},
		Providers: ProvidersConfig{
			CloudVision: CloudVisionConfig{
				Endpoint: "https://generativelanguage.googleapis.com/v1beta",
				Model:    "gemini-2.0-flash",
				Timeout:  30 * time.Second,
			},
			CloudOCR: CloudOCRConfig{
				Endpoint: "https://api.ocr.space/parse/image",
				Language: "eng",
				Timeout:  60 * time.Second,
			},
			LocalModel: LocalModelConfig{
				Endpoint:           "http://127.0.0.1:11434",
				Model:              "glm-ocr:latest",
				Timeout:            120 * time.Second,
				EnableTesseract:    true,
				TesseractLanguages: []string{"eng"},
			},
		},
		OCR: OCRConfig{
			MaxAttempts:   3,
			BaseDelay:     2 * time.Second,
			Workers:       4,
			DPI:           150,
			PageGrace:     10 * time.Second,
			CacheCapacity: 128,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        1 * time.Hour,
			MaxEntries: 1024,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: "verilabel.db",
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Storage.Driver != "sqlite" && c.Storage.Driver != "postgres" {
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	if c.OCR.MaxAttempts < 1 {
		return fmt.Errorf("ocr max_attempts must be at least 1")
	}

	if c.OCR.Workers < 1 {
		return fmt.Errorf("ocr workers must be at least 1")
	}

	if c.OCR.DPI < 72 || c.OCR.DPI > 600 {
		return fmt.Errorf("ocr dpi must be between 72 and 600")
	}

	if c.OCR.CacheCapacity < 1 {
		return fmt.Errorf("ocr cache_capacity must be at least 1")
	}

	return nil
}

// StorageDSN returns the appropriate database connection string.
func (c *Config) StorageDSN() string {
	if c.Storage.Driver == "sqlite" {
		return c.Storage.SQLite.Path
	}
	return c.Storage.Postgres.DSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Providers.CloudVision.APIKey = strings.TrimSpace(v)
	}

	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Providers.CloudVision.Model = v
	}

	if v := os.Getenv("OCRSPACE_API_KEY"); v != "" {
		cfg.Providers.CloudOCR.APIKey = strings.TrimSpace(v)
	}

	if v := os.Getenv("OLLAMA_ENDPOINT"); v != "" {
		cfg.Providers.LocalModel.Endpoint = v
	}

	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Providers.LocalModel.Model = v
	}

	if d, ok := durationEnv("OLLAMA_TIMEOUT"); ok {
		cfg.Providers.LocalModel.Timeout = d
	}

	if v := os.Getenv("OCR_MAX_ATTEMPTS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.OCR.MaxAttempts = n
		}
	}

	if d, ok := durationEnv("OCR_BASE_DELAY"); ok {
		cfg.OCR.BaseDelay = d
	}

	if v := os.Getenv("OCR_WORKERS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.OCR.Workers = n
		}
	}

	if v := os.Getenv("OCR_DPI"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			cfg.OCR.DPI = n
		}
	}

	if d, ok := durationEnv("OCR_PAGE_GRACE"); ok {
		cfg.OCR.PageGrace = d
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Storage.Driver = "sqlite"
			cfg.Storage.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Storage.Driver = "postgres"
			cfg.Storage.Postgres.DSN = v
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

// durationEnv reads a duration env var, accepting either Go duration syntax
// ("90s") or a bare number of seconds ("90").
func durationEnv(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, true
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	return 0, false
}
