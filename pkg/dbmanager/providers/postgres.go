package providers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"github.com/bitechdev/CrudSpec/pkg/logger"
)

// PostgresProvider implements Provider for PostgreSQL databases.
type PostgresProvider struct {
	db     *sql.DB
	config Config
}

// NewPostgresProvider creates a new PostgreSQL provider.
func NewPostgresProvider() *PostgresProvider {
	return &PostgresProvider{}
}

// Connect establishes a PostgreSQL connection with retry.
func (p *PostgresProvider) Connect(ctx context.Context, cfg Config) error {
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
			logger.Info("Retrying PostgreSQL connection: attempt=%d/%d, delay=%v", attempt+1, retryAttempts, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		db, err = sql.Open("pgx", cfg.DSN)
		if err != nil {
			lastErr = err
			logger.Warn("Failed to open PostgreSQL connection: %v", err)
			continue
		}

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err = db.PingContext(connectCtx)
		cancel()
		if err != nil {
			lastErr = err
			db.Close()
			logger.Warn("Failed to ping PostgreSQL database: %v", err)
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

	logger.Info("PostgreSQL connection established: name=%s", cfg.Name)
	return nil
}

// Close closes the PostgreSQL connection.
func (p *PostgresProvider) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL connection: %w", err)
	}
	logger.Info("PostgreSQL connection closed: name=%s", p.config.Name)
	p.db = nil
	return nil
}

// HealthCheck verifies the PostgreSQL connection is alive.
func (p *PostgresProvider) HealthCheck(ctx context.Context) error {
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
func (p *PostgresProvider) GetNative() (*sql.DB, error) {
	if p.db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	return p.db, nil
}

// Stats returns connection pool statistics.
func (p *PostgresProvider) Stats() *ConnectionStats {
	return poolStats(p.db, p.config.Name, "postgres")
}
