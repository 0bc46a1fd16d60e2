// Package providers opens raw sql.DB connections for the supported
// database drivers.
package providers

import (
	"context"
	"database/sql"
	"math"
	"time"
)

// Config describes a single connection for a provider.
type Config struct {
	Name            string
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// ConnectionStats contains statistics about a database connection.
type ConnectionStats struct {
	Name              string
	Driver            string
	Connected         bool
	LastHealthCheck   time.Time
	HealthCheckStatus string

	OpenConnections   int
	InUse             int
	Idle              int
	WaitCount         int64
	WaitDuration      time.Duration
	MaxIdleClosed     int64
	MaxLifetimeClosed int64
}

// Provider creates and manages the underlying database connection.
type Provider interface {
	// Connect establishes the database connection.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the connection.
	Close() error

	// HealthCheck verifies the connection is alive.
	HealthCheck(ctx context.Context) error

	// GetNative returns the native *sql.DB.
	GetNative() (*sql.DB, error)

	// Stats returns connection statistics.
	Stats() *ConnectionStats
}

// applyPool configures the sql connection pool from cfg.
func applyPool(db *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// calculateBackoff calculates exponential backoff delay.
func calculateBackoff(attempt int, initial, maxDelay time.Duration) time.Duration {
	delay := initial * time.Duration(math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

func poolStats(db *sql.DB, name, driver string) *ConnectionStats {
	if db == nil {
		return &ConnectionStats{Name: name, Driver: driver, Connected: false}
	}
	stats := db.Stats()
	return &ConnectionStats{
		Name:              name,
		Driver:            driver,
		Connected:         true,
		OpenConnections:   stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}
