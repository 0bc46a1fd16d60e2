package config

import "time"

// Config represents the complete application configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Crud          CrudConfig          `mapstructure:"crud"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Cache         CacheConfig         `mapstructure:"cache"`
	ErrorTracking ErrorTrackingConfig `mapstructure:"error_tracking"`
	Middleware    MiddlewareConfig    `mapstructure:"middleware"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	CORS          CORSConfig          `mapstructure:"cors"`
	DBManager     DBManagerConfig     `mapstructure:"dbmanager"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// CrudConfig holds the schema-driven CRUD engine configuration.
type CrudConfig struct {
	SchemaDir       string `mapstructure:"schema_dir"`
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
	DebugMode       bool   `mapstructure:"debug_mode"`
}

// LoggerConfig holds logger configuration.
type LoggerConfig struct {
	Dev  bool   `mapstructure:"dev"`
	Path string `mapstructure:"path"`
}

// CacheConfig holds cache provider configuration.
type CacheConfig struct {
	Provider string         `mapstructure:"provider"` // memory, redis, memcache
	Redis    RedisConfig    `mapstructure:"redis"`
	Memcache MemcacheConfig `mapstructure:"memcache"`
}

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MemcacheConfig holds Memcache-specific configuration.
type MemcacheConfig struct {
	Servers      []string      `mapstructure:"servers"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// ErrorTrackingConfig holds error tracking configuration.
type ErrorTrackingConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Provider         string  `mapstructure:"provider"` // sentry, noop
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	Release          string  `mapstructure:"release"`
	Debug            bool    `mapstructure:"debug"`
	SampleRate       float64 `mapstructure:"sample_rate"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

// MiddlewareConfig holds HTTP middleware configuration.
type MiddlewareConfig struct {
	MaxRequestSize int64 `mapstructure:"max_request_size"`
	GzipEnabled    bool  `mapstructure:"gzip_enabled"`
	CSRFEnabled    bool  `mapstructure:"csrf_enabled"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// DBManagerConfig holds the named database connection configuration.
type DBManagerConfig struct {
	DefaultConnection string                      `mapstructure:"default_connection"`
	Connections       map[string]ConnectionConfig `mapstructure:"connections"`
}

// ConnectionConfig describes a single named database connection.
type ConnectionConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite, mssql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}
