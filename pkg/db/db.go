// Package db establishes the GORM connection for the configured database
// backend.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectRetries    = 5
	connectRetryDelay = 2 * time.Second
)

// Connect opens a GORM connection for dbType ("postgres" or "mysql"),
// retrying while the database comes up.
func Connect(dbType, dsn string, logger *slog.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected postgres or mysql)", dbType)
	}

	var lastErr error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		gormDB, err := gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			lastErr = err
		} else if sqlDB, dbErr := gormDB.DB(); dbErr != nil {
			lastErr = dbErr
		} else if pingErr := sqlDB.Ping(); pingErr != nil {
			lastErr = pingErr
		} else {
			return gormDB, nil
		}
		logger.Warn("database not ready, retrying",
			"type", dbType, "attempt", attempt, "error", lastErr)
		time.Sleep(connectRetryDelay)
	}
	return nil, fmt.Errorf("failed to connect to %s database after %d attempts: %w", dbType, connectRetries, lastErr)
}
