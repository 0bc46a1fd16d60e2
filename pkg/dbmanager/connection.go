package dbmanager

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mssqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/common/adapters/database"
	"github.com/bitechdev/CrudSpec/pkg/dbmanager/providers"
)

// Connection represents a single named database connection. The bun.DB
// and its common.Database adapter are built on Connect and reused.
type Connection interface {
	Name() string
	Driver() string

	Connect(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error
	Reconnect(ctx context.Context) error

	// Database returns the common.Database adapter for this connection.
	Database() (common.Database, error)

	// BunDB returns the underlying *bun.DB.
	BunDB() (*bun.DB, error)

	Stats() *providers.ConnectionStats
}

type sqlConnection struct {
	cfg      providers.Config
	provider providers.Provider

	mu      sync.RWMutex
	bunDB   *bun.DB
	adapter common.Database
}

// newConnection creates a connection for the configured driver.
func newConnection(cfg providers.Config) (Connection, error) {
	var provider providers.Provider
	switch strings.ToLower(cfg.Driver) {
	case "postgres", "postgresql", "pgx":
		cfg.Driver = "postgres"
		provider = providers.NewPostgresProvider()
	case "sqlite", "sqlite3":
		cfg.Driver = "sqlite"
		provider = providers.NewSQLiteProvider()
	case "mssql", "sqlserver":
		cfg.Driver = "mssql"
		provider = providers.NewMSSQLProvider()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}

	return &sqlConnection{cfg: cfg, provider: provider}, nil
}

func (c *sqlConnection) Name() string {
	return c.cfg.Name
}

func (c *sqlConnection) Driver() string {
	return c.cfg.Driver
}

func (c *sqlConnection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.provider.Connect(ctx, c.cfg); err != nil {
		return NewConnectionError(c.cfg.Name, "connect", err)
	}

	sqlDB, err := c.provider.GetNative()
	if err != nil {
		return NewConnectionError(c.cfg.Name, "connect", err)
	}

	switch c.cfg.Driver {
	case "postgres":
		c.bunDB = bun.NewDB(sqlDB, pgdialect.New())
	case "mssql":
		c.bunDB = bun.NewDB(sqlDB, mssqldialect.New())
	default:
		c.bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}

	c.adapter = database.NewBunAdapter(c.bunDB)
	return nil
}

func (c *sqlConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bunDB = nil
	c.adapter = nil
	if err := c.provider.Close(); err != nil {
		return NewConnectionError(c.cfg.Name, "close", err)
	}
	return nil
}

func (c *sqlConnection) HealthCheck(ctx context.Context) error {
	return c.provider.HealthCheck(ctx)
}

func (c *sqlConnection) Reconnect(ctx context.Context) error {
	if err := c.Close(); err != nil {
		return err
	}
	return c.Connect(ctx)
}

func (c *sqlConnection) Database() (common.Database, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.adapter == nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionClosed, c.cfg.Name)
	}
	return c.adapter, nil
}

func (c *sqlConnection) BunDB() (*bun.DB, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.bunDB == nil {
		return nil, fmt.Errorf("%w: %s", ErrConnectionClosed, c.cfg.Name)
	}
	return c.bunDB, nil
}

func (c *sqlConnection) Stats() *providers.ConnectionStats {
	return c.provider.Stats()
}
