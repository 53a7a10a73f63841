package cfgmng

import (
	"errors"
	"time"
)

const EnvPrefix = "TABLEAPI"

// ServerConfig holds every setting of the table server
type ServerConfig struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Batch    BatchConfig    `mapstructure:"batch"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	// HealthAddr serves /live, /ready and /metrics
	HealthAddr      string        `mapstructure:"health_addr"`
	Prefix          string        `mapstructure:"prefix"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	CreateTables bool   `mapstructure:"create_tables"`
}

// CacheConfig selects redis when RedisAddr is set, an in-process LRU otherwise
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Size          int           `mapstructure:"size"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// NATSConfig publishes engine events to NATS when URL is set
type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// AuthConfig picks a local JWT secret or a remote auth service
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	RemoteURL  string        `mapstructure:"remote_url"`
	RemotePath string        `mapstructure:"remote_path"`
	Retries    int           `mapstructure:"retries"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BatchConfig enables level-parallel batches when Workers > 0
type BatchConfig struct {
	Workers int `mapstructure:"workers"`
	Queue   int `mapstructure:"queue"`
}

func ServerDefaults() map[string]any {
	return map[string]any{
		"http.addr":              ":8080",
		"http.health_addr":       ":8086",
		"http.prefix":            "",
		"http.max_body_bytes":    10 << 20,
		"http.shutdown_timeout":  "15s",
		"database.dsn":           "",
		"database.create_tables": false,
		"cache.redis_addr":       "",
		"cache.redis_password":   "",
		"cache.redis_db":         0,
		"cache.size":             10000,
		"cache.ttl":              "5m",
		"nats.url":               "",
		"nats.prefix":            "tableapi",
		"auth.jwt_secret":        "",
		"auth.issuer":            "",
		"auth.remote_url":        "",
		"auth.remote_path":       "/auth",
		"auth.retries":           3,
		"auth.cache_size":        4096,
		"auth.cache_ttl":         "1m",
		"logging.level":          "info",
		"logging.format":         "json",
		"batch.workers":          0,
		"batch.queue":            64,
	}
}

// ReadServerConfig reads filename.yaml from path if present and applies
// TABLEAPI_* environment overrides.
func ReadServerConfig(path, filename string) (*ServerConfig, error) {
	return LoadConfig[ServerConfig](path, filename,
		WithDefaults(ServerDefaults()),
		WithEnvPrefix(EnvPrefix),
		WithOptionalFile(),
	)
}

// LoadServerConfig reads and validates the server configuration
func LoadServerConfig(path, filename string) (*ServerConfig, error) {
	cfg, err := ReadServerConfig(path, filename)
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *ServerConfig) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.Auth.JWTSecret == "" && c.Auth.RemoteURL == "" {
		errs = append(errs, errors.New("one of auth.jwt_secret or auth.remote_url is required"))
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, errors.New("batch.workers must not be negative"))
	}
	return errors.Join(errs...)
}
