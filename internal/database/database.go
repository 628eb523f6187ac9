package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/logging"
	"github.com/MarcoPoloResearchLab/podium/internal/voting"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	// DriverPostgres selects the Postgres store.
	DriverPostgres = "postgres"
	// DriverSQLite selects the embedded SQLite store.
	DriverSQLite = "sqlite"
)

// Options describes how to reach the persistent store.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the configured store and ensures the voting schema exists.
// Connection failures are reported as voting.ErrStoreUnavailable.
func Open(opts Options, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	dialector, maxOpen, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logging.NewGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", voting.ErrStoreUnavailable, opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", voting.ErrStoreUnavailable, err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", voting.ErrStoreUnavailable, opts.Driver, err)
	}

	if err := EnsureSchema(db, logger); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("database initialized", zap.String("driver", opts.Driver))
	return db, nil
}

func dialectorFor(opts Options) (gorm.Dialector, int, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case DriverPostgres:
		maxOpen := opts.MaxOpenConns
		if maxOpen <= 0 {
			maxOpen = 10
		}
		return postgres.Open(opts.DSN), maxOpen, nil
	case DriverSQLite:
		return openSQLite(opts.DSN), 1, nil
	default:
		return nil, 0, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}
