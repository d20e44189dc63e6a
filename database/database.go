// Package database provides the GORM connection and the repository facade
// for the autotrade worker.
//
// All cross-cycle and cross-instance coordination goes through these tables;
// the conditional claim UPDATE in the queue repository is the only mutex the
// system has, which keeps multiple worker instances safe against each other.
//
// Data models live in the models_pkg package to avoid circular imports
// between the repository subpackages.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "autotrade-worker/database/models_pkg"
)

// Database holds the GORM database connection shared by the repositories.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes the database connection using GORM.
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(MaxOpenConns)
	sqlDB.SetMaxIdleConns(MaxIdleConns)
	sqlDB.SetConnMaxLifetime(ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(ConnMaxIdleTime)

	return &Database{db: db}, nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive.
func (d *Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Type aliases so callers can keep importing models through the database
// package.
type WatchlistEntry = models.WatchlistEntry
type Plan = models.Plan
type QueueIntent = models.QueueIntent
type DispatchEvent = models.DispatchEvent
type DailyPrice = models.DailyPrice
type UniverseMember = models.UniverseMember
type SectorMap = models.SectorMap
type PositionState = models.PositionState
