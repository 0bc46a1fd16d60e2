package providers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/bitechdev/CrudSpec/pkg/logger"
)

// MSSQLProvider implements Provider for Microsoft SQL Server databases.
type MSSQLProvider struct {
	db     *sql.DB
	config Config
}

// NewMSSQLProvider creates a new SQL Server provider.
func NewMSSQLProvider() *MSSQLProvider {
	return &MSSQLProvider{}
}

// Connect establishes a SQL Server connection with retry.
func (p *MSSQLProvider) Connect(ctx context.Context, cfg Config) error {
	var db *sql.DB
	var err, lastErr error

	retryAttempts := 3
	retryDelay := 1 * time.Second
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, retryDelay, 10*time.Second)
			logger.Info("Retrying SQL Server connection: attempt=%d/%d, delay=%v", attempt+1, retryAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		db, err = sql.Open("sqlserver", cfg.DSN)
		if err != nil {
			lastErr = err
			logger.Warn("Failed to open SQL Server connection: %v", err)
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err = db.PingContext(connectCtx)
		cancel()
		if err != nil {
			lastErr = err
			db.Close()
			logger.Warn("Failed to ping SQL Server database: %v", err)
			continue
		}
		break
	}

	if err != nil {
		return fmt.Errorf("failed to connect after %d attempts: %w", retryAttempts, lastErr)
	}

	applyPool(db, cfg)
	p.db = db
	p.config = cfg

	logger.Info("SQL Server connection established: name=%s", cfg.Name)
	return nil
}

// Close closes the SQL Server connection.
func (p *MSSQLProvider) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQL Server connection: %w", err)
	}
	logger.Info("SQL Server connection closed: name=%s", p.config.Name)
	p.db = nil
	return nil
}

// HealthCheck verifies the SQL Server connection is alive.
func (p *MSSQLProvider) HealthCheck(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.db.PingContext(healthCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// GetNative returns the native *sql.DB connection.
func (p *MSSQLProvider) GetNative() (*sql.DB, error) {
	if p.db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	return p.db, nil
}

// Stats returns connection pool statistics.
func (p *MSSQLProvider) Stats() *ConnectionStats {
	return poolStats(p.db, p.config.Name, "mssql")
}
