package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Port          string
	StorageDriver string
	StoragePath   string
	DatabaseURL   string
	ListName      string
	LockTimeout   time.Duration
	LogLevel      string
}

// fileConfig - формат TOML файла из CONFIG_FILE
type fileConfig struct {
	Port     string `toml:"port"`
	LogLevel string `toml:"log_level"`
	Storage  struct {
		Driver      string `toml:"driver"`
		Path        string `toml:"path"`
		DatabaseURL string `toml:"database_url"`
		ListName    string `toml:"list_name"`
		LockTimeout string `toml:"lock_timeout"`
	} `toml:"storage"`
}

// Load: значения по умолчанию < TOML файл (CONFIG_FILE) < переменные окружения
func Load() (Config, error) {
	cfg := Config{
		Port:          "8080",
		StorageDriver: DriverFile,
		StoragePath:   "tasks.json",
		ListName:      "default",
		LockTimeout:   10 * time.Second,
		LogLevel:      "info",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.StorageDriver = getEnv("STORAGE_DRIVER", cfg.StorageDriver)
	cfg.StoragePath = getEnv("STORAGE_PATH", cfg.StoragePath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.ListName = getEnv("LIST_NAME", cfg.ListName)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if v := os.Getenv("LOCK_TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return cfg, fmt.Errorf("LOCK_TIMEOUT: %w", err)
		}
		cfg.LockTimeout = d
	}

	return cfg, cfg.validate()
}

func (c *Config) mergeFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}

	c.Port = orDefault(fc.Port, c.Port)
	c.LogLevel = orDefault(fc.LogLevel, c.LogLevel)
	c.StorageDriver = orDefault(fc.Storage.Driver, c.StorageDriver)
	c.StoragePath = orDefault(fc.Storage.Path, c.StoragePath)
	c.DatabaseURL = orDefault(fc.Storage.DatabaseURL, c.DatabaseURL)
	c.ListName = orDefault(fc.Storage.ListName, c.ListName)
	if fc.Storage.LockTimeout != "" {
		d, err := parseTimeout(fc.Storage.LockTimeout)
		if err != nil {
			return fmt.Errorf("%s: storage.lock_timeout: %w", path, err)
		}
		c.LockTimeout = d
	}
	return nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverFile, DriverMemory, DriverSQLite:
	case DriverPostgres, DriverMySQL:
		if c.DatabaseURL == "" {
			return fmt.Errorf("storage driver %q requires DATABASE_URL", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.ListName == "" {
		return fmt.Errorf("list name must not be empty")
	}
	return nil
}

func parseTimeout(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", v)
	}
	return d, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
