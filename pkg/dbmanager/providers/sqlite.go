package providers

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/bitechdev/CrudSpec/pkg/logger"
)

// SQLiteProvider implements Provider for SQLite databases. It relies on
// bun's sqliteshim, which picks a CGo-free driver when available.
type SQLiteProvider struct {
	db     *sql.DB
	config Config
}

// NewSQLiteProvider creates a new SQLite provider.
func NewSQLiteProvider() *SQLiteProvider {
	return &SQLiteProvider{}
}

// Connect opens the SQLite database.
func (p *SQLiteProvider) Connect(ctx context.Context, cfg Config) error {
	db, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	applyPool(db, cfg)
	p.db = db
	p.config = cfg

	logger.Info("SQLite connection established: name=%s", cfg.Name)
	return nil
}

// Close closes the SQLite connection.
func (p *SQLiteProvider) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close SQLite connection: %w", err)
	}
	logger.Info("SQLite connection closed: name=%s", p.config.Name)
	p.db = nil
	return nil
}

// HealthCheck verifies the SQLite connection is alive.
func (p *SQLiteProvider) HealthCheck(ctx context.Context) error {
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
func (p *SQLiteProvider) GetNative() (*sql.DB, error) {
	if p.db == nil {
		return nil, fmt.Errorf("database connection is not initialized")
	}
	return p.db, nil
}

// Stats returns connection pool statistics.
func (p *SQLiteProvider) Stats() *ConnectionStats {
	return poolStats(p.db, p.config.Name, "sqlite")
}
