package db

import (
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/buildco/backend/internal/models"
)

// New creates a new GORM database connection using the provided DSN. SQL
// statements are logged through logrus; unique violations are translated to
// gorm.ErrDuplicatedKey.
func New(dsn string, lg *log.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if lg.IsLevelEnabled(log.DebugLevel) {
		level = logger.Info
	}
	gormLogger := logger.New(lg, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	lg.Info("connected to database")
	return db, nil
}

// Migrate creates or updates the maintenance tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.MaintenanceRequest{}, &models.StatusHistoryEntry{}, &models.MaintenanceImage{})
}
