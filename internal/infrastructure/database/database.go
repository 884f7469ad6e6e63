package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sangkips/installments-api/internal/config"
	"github.com/sangkips/installments-api/internal/domain/entity"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Database is the explicit store handle. It is opened once at startup,
// injected into the repositories and closed on shutdown.
type Database struct {
	DB     *gorm.DB
	Driver string
}

// Open connects to the configured store
func Open(cfg *config.DatabaseConfig, logCfg *config.LogConfig, log *zap.Logger) (*Database, error) {
	gormCfg := &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.GormLevel(logCfg.GormLevel), logCfg.SlowThreshold),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.SQLiteDSN()), gormCfg)
	case DriverPostgres:
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: true,
		}), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver == DriverSQLite {
		// One writer per data file; an in-memory database also lives and
		// dies with its only connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	log.Info("database connected", zap.String("driver", driver))
	return &Database{DB: db, Driver: driver}, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func (d *Database) AutoMigrate() error {
	err := d.DB.AutoMigrate(
		&entity.Customer{},
		&entity.Product{},
		&entity.Sale{},
		&entity.SaleItem{},
		&entity.Installment{},
		&entity.PaymentTransaction{},
		&entity.IdempotencyKey{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Ping checks that the store is reachable
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the store handle
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
