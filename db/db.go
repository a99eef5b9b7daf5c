package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

func NewDB(uri string, logDBQueries bool) (*gorm.DB, error) {
	// sqlite needs a few pragmas to behave under concurrent writers
	if !strings.Contains(uri, "?") {
		uri = uri + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	gormConfig := &gorm.Config{
		TranslateError: true,
	}
	if logDBQueries {
		gormConfig.Logger = gorm_logger.Default.LogMode(gorm_logger.Info)
	}

	gormDB, err := gorm.Open(sqlite.Open(uri), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gormDB, nil
}
