package database

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CoachDesk/app/models"
	"github.com/ManuelReschke/CoachDesk/internal/pkg/config"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// SetupDatabase opens the Postgres connection, retrying while the database
// container is still starting.
func SetupDatabase(cfg config.DatabaseConfig, dev bool) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if dev {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: false,
		}), gormCfg)
		if err == nil {
			sqlDB, derr := db.DB()
			if derr != nil {
				return nil, derr
			}
			sqlDB.SetMaxOpenConns(20)
			sqlDB.SetMaxIdleConns(5)
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
			return db, nil
		}

		log.Warnf("[Database] Failed to connect (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Infof("[Database] Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("connect database: %w", err)
}

// AutoMigrate creates the schema from the models. Production uses the SQL
// migrations in migrations/ instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models.All()...)
}
