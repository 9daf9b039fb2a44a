package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted in REFMAN_BACKEND.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// StorageConfig selects and locates the reference store.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	JSONPath   string `yaml:"json_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DatabaseConfig holds PostgreSQL database connection settings.
// DSN, when set, is used as-is and the individual parts are ignored.
type DatabaseConfig struct {
	DSN                string `yaml:"dsn"`
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// MinIOConfig holds object storage settings used for library backups.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled reports whether backups to object storage are configured.
func (m MinIOConfig) Enabled() bool { return strings.TrimSpace(m.Endpoint) != "" }

// LoggingConfig mirrors logger.Options.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	File      string `yaml:"file"`
	AddSource bool   `yaml:"add_source"`
}

// AppConfig is the centralized configuration struct for the application.
type AppConfig struct {
	AppHost  string         `yaml:"app_host"`
	Port     string         `yaml:"port"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultJSONPath is the flat-file library location used when none is configured:
// ~/Documents/RefMan/references.json, or a relative path when the home dir is unknown.
func DefaultJSONPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, "Documents", "RefMan", "references.json")
}

// Defaults returns the configuration used before any file or environment override.
func Defaults() *AppConfig {
	return &AppConfig{
		AppHost: "localhost:8080",
		Port:    "8080",
		Storage: StorageConfig{
			Backend:    BackendJSON,
			JSONPath:   DefaultJSONPath(),
			SQLitePath: filepath.Join(filepath.Dir(DefaultJSONPath()), "references.db"),
		},
		Database: DatabaseConfig{
			Port:               "5432",
			SSLMode:            "disable",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by REFMAN_CONFIG
// (if any), then environment variables. Real environment variables take precedence.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() (*AppConfig, error) {
	cfg := Defaults()
	if path := os.Getenv("REFMAN_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON:
		if strings.TrimSpace(c.Storage.JSONPath) == "" {
			return errors.New("config: json backend needs a library path")
		}
	case BackendPostgres:
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.SQLitePath) == "" {
			return errors.New("config: sqlite backend needs a database path")
		}
	default:
		return fmt.Errorf("config: unknown backend %q (want json, postgres or sqlite)", c.Storage.Backend)
	}
	return nil
}

func loadFile(path string, cfg *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *AppConfig) {
	c.AppHost = getEnv("APP_HOST", c.AppHost)
	c.Port = getEnv("PORT", c.Port)

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(getEnv("REFMAN_BACKEND", c.Storage.Backend)))
	c.Storage.JSONPath = getEnv("REFMAN_JSON_PATH", c.Storage.JSONPath)
	c.Storage.SQLitePath = getEnv("REFMAN_SQLITE_PATH", c.Storage.SQLitePath)

	c.Database.DSN = getEnv("REFMAN_DSN", c.Database.DSN)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetimeSec = getEnvInt("DB_CONN_MAX_LIFETIME_SEC", c.Database.ConnMaxLifetimeSec)

	c.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = getEnv("MINIO_BUCKET", c.MinIO.Bucket)
	c.MinIO.UseSSL = getEnvBool("MINIO_USE_SSL", c.MinIO.UseSSL)

	c.Logging.Level = getEnv("REFMAN_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("REFMAN_LOG_FORMAT", c.Logging.Format)
	c.Logging.File = getEnv("REFMAN_LOG_FILE", c.Logging.File)
	c.Logging.AddSource = getEnvBool("REFMAN_LOG_SOURCE", c.Logging.AddSource)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
