package database

import (
	"fmt"
	"time"

	"github.com/pion/logging"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Init opens the GORM database connection and runs migrations.
func Init(dbURL string, logger logging.LeveledLogger) error {
	var err error
	DB, err = gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	logger.Infof("database connection successful")

	if err := runMigrations(logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// runMigrations auto-migrates all models.
func runMigrations(logger logging.LeveledLogger) error {
	logger.Infof("running database migrations...")

	if err := DB.AutoMigrate(
		&Room{},
		&FailedAttempt{},
		&PeerConnectionAudit{},
	); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	logger.Infof("database migrations completed")
	return nil
}

// Close closes the database connection.
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
