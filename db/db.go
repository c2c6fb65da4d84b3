package db

import (
	"os"
	"path/filepath"

	"wabaconnect/config"
	"wabaconnect/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"go.uber.org/zap"
)

// Connect opens the database (sqlite3 by default) and migrates the workflow tables.
func Connect(conf config.Configuration, logger *zap.Logger) (*gorm.DB, error) {
	database := conf.Database
	if database == "" {
		database = "sqlite3"
	}

	var (
		db  *gorm.DB
		err error
	)

	if database == "postgres" || database == "postgresql" {
		logger.Info("connecting to postgresql", zap.String("host", conf.DbHost), zap.String("db", conf.DbName))
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass
		db, err = gorm.Open("postgres", path)
	} else {
		dbPath := conf.DbPath
		if dbPath == "" {
			dbPath = "db/database.db"
		}
		logger.Info("connecting to sqlite3", zap.String("path", dbPath))
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		db, err = gorm.Open("sqlite3", dbPath)
	}

	if err != nil {
		logger.Error("failed to connect database", zap.Error(err))
		return nil, err
	}

	db.LogMode(conf.LogLevel == "debug")

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenMemory opens a private in-memory sqlite database, migrated. Used by tests and
// local demos.
func OpenMemory() (*gorm.DB, error) {
	db, err := gorm.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// every new connection would get an empty database
	db.DB().SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.TenantAccount{},
		&models.StatusRefresh{},
	).Error
}
