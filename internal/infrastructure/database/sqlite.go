package database

import (
	"log"

	"creditmanager/internal/config"
	"creditmanager/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitSQLite opens the single-file embedded store and migrates the schema.
func InitSQLite(cfg *config.SQLiteConfig) *gorm.DB {
	db, err := Open(cfg.Path, cfg.MaxOpenConns)
	if err != nil {
		log.Fatalf("open sqlite %s: %v", cfg.Path, err)
	}
	log.Printf("sqlite store ready: %s", cfg.Path)
	return db
}

// Open connects to a sqlite database at the given DSN and runs migrations.
// Separated from InitSQLite so tests can point at in-memory databases.
func Open(dsn string, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single pooled connection avoids
	// SQLITE_BUSY under concurrent requests.
	if maxOpenConns <= 0 {
		maxOpenConns = 1
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)

	err = db.AutoMigrate(
		&model.Account{},
		&model.CreditTransaction{},
		&model.OutboxMessage{},
		&model.PurchasePack{},
		&model.Coupon{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
