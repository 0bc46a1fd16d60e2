// Package dbmanager manages multiple named database connections. Each
// schema file can pin a record set to a named connection; the manager
// resolves those names to live bun-backed databases.
package dbmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/config"
	"github.com/bitechdev/CrudSpec/pkg/dbmanager/providers"
	"github.com/bitechdev/CrudSpec/pkg/logger"
)

// Manager manages multiple named database connections.
type Manager interface {
	// Connection retrieval
	Get(name string) (Connection, error)
	GetDefault() (Connection, error)
	GetAll() map[string]Connection

	// Database retrieval
	GetDatabase(name string) (common.Database, error)
	GetDefaultDatabase() (common.Database, error)

	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	// Stats
	Stats() *ManagerStats
}

// ManagerStats contains statistics about the connection manager.
type ManagerStats struct {
	TotalConnections int
	HealthyCount     int
	UnhealthyCount   int
	ConnectionStats  map[string]*providers.ConnectionStats
}

// connectionManager implements Manager.
type connectionManager struct {
	connections map[string]Connection
	cfg         config.DBManagerConfig
	mu          sync.RWMutex
}

var (
	// singleton instance of the manager
	instance Manager
	// instanceMu protects the singleton instance
	instanceMu sync.RWMutex
)

// SetupManager initializes the singleton database manager with the
// provided configuration. Must be called before GetInstance.
func SetupManager(cfg config.DBManagerConfig) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return fmt.Errorf("manager already initialized")
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}

	instance = mgr
	return nil
}

// GetInstance returns the singleton instance of the database manager.
func GetInstance() (Manager, error) {
	instanceMu.RLock()
	defer instanceMu.RUnlock()

	if instance == nil {
		return nil, fmt.Errorf("manager not initialized: call SetupManager first")
	}
	return instance, nil
}

// ResetInstance resets the singleton instance. Test use only.
func ResetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		_ = instance.Close()
	}
	instance = nil
}

// NewManager creates a new database connection manager.
func NewManager(cfg config.DBManagerConfig) (Manager, error) {
	if len(cfg.Connections) == 0 {
		return nil, fmt.Errorf("%w: no connections configured", ErrInvalidConfiguration)
	}
	if cfg.DefaultConnection != "" {
		if _, ok := cfg.Connections[cfg.DefaultConnection]; !ok {
			return nil, fmt.Errorf("%w: default connection '%s' is not configured", ErrInvalidConfiguration, cfg.DefaultConnection)
		}
	}

	return &connectionManager{
		connections: make(map[string]Connection),
		cfg:         cfg,
	}, nil
}

// Get retrieves a named connection.
func (m *connectionManager) Get(name string) (Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, name)
	}
	return conn, nil
}

// GetDefault retrieves the default connection.
func (m *connectionManager) GetDefault() (Connection, error) {
	m.mu.RLock()
	defaultName := m.cfg.DefaultConnection
	m.mu.RUnlock()

	if defaultName == "" {
		return nil, ErrNoDefaultConnection
	}
	return m.Get(defaultName)
}

// GetAll returns a copy of all connections.
func (m *connectionManager) GetAll() map[string]Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Connection, len(m.connections))
	for name, conn := range m.connections {
		result[name] = conn
	}
	return result
}

// GetDatabase returns the common.Database for a named connection.
func (m *connectionManager) GetDatabase(name string) (common.Database, error) {
	conn, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	return conn.Database()
}

// GetDefaultDatabase returns the common.Database for the default
// connection.
func (m *connectionManager) GetDefaultDatabase() (common.Database, error) {
	conn, err := m.GetDefault()
	if err != nil {
		return nil, err
	}
	db, err := conn.Database()
	if err != nil {
		return nil, fmt.Errorf("failed to get database from default connection: %w", err)
	}
	return db, nil
}

// Connect establishes all configured database connections.
func (m *connectionManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, connCfg := range m.cfg.Connections {
		conn, err := newConnection(providers.Config{
			Name:            name,
			Driver:          connCfg.Driver,
			DSN:             connCfg.DSN,
			MaxOpenConns:    connCfg.MaxOpenConns,
			MaxIdleConns:    connCfg.MaxIdleConns,
			ConnMaxLifetime: connCfg.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to create connection '%s': %w", name, err)
		}

		if err := conn.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect '%s': %w", name, err)
		}

		m.connections[name] = conn
		logger.Info("Database connection established: name=%s, driver=%s", name, conn.Driver())
	}

	logger.Info("Database manager initialized: connections=%d", len(m.connections))
	return nil
}

// Close closes all database connections.
func (m *connectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, conn := range m.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection '%s': %w", name, err))
			logger.Error("Failed to close connection: name=%s, error=%v", name, err)
		} else {
			logger.Info("Connection closed: name=%s", name)
		}
	}

	m.connections = make(map[string]Connection)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing connections: %v", errs)
	}

	logger.Info("Database manager closed")
	return nil
}

// HealthCheck performs health checks on all connections.
func (m *connectionManager) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	connections := make(map[string]Connection, len(m.connections))
	for name, conn := range m.connections {
		connections[name] = conn
	}
	m.mu.RUnlock()

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for name, conn := range connections {
		if err := conn.HealthCheck(healthCtx); err != nil {
			errs = append(errs, fmt.Errorf("connection '%s': %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("health check failed for %d connections: %v", len(errs), errs)
	}
	return nil
}

// Stats returns statistics for all connections.
func (m *connectionManager) Stats() *ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &ManagerStats{
		TotalConnections: len(m.connections),
		ConnectionStats:  make(map[string]*providers.ConnectionStats),
	}

	for name, conn := range m.connections {
		connStats := conn.Stats()
		stats.ConnectionStats[name] = connStats

		if connStats.Connected {
			stats.HealthyCount++
		} else {
			stats.UnhealthyCount++
		}
	}

	return stats
}
