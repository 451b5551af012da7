package database

import (
	"example.com/granary/config"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Connect opens the write and read-only database connections and
// configures their connection pools.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDB, err := gorm.Open(mysql.Open(cfg.ReadOnlyDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	if err := configurePool(db, cfg, 1); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure write pool")
	}

	// Read path gets higher limits since list and analytics endpoints lean on it
	if err := configurePool(readOnlyDB, cfg, 2); err != nil {
		return nil, nil, errors.Wrap(err, "failed to configure read-only pool")
	}

	return db, readOnlyDB, nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig, factor int) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns * factor)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns * factor)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return nil
}

// Close closes the underlying connection of a gorm handle
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
