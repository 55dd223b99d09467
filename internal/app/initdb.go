package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/truthmd/truthlink/config"
)

// getDatabase opens the gorm handle for the configured backend. The sqlite
// database lives under the workdir data directory.
func getDatabase(cfg config.DBConfig, workdir string) (*gorm.DB, error) {
	level := logger.Silent
	if cfg.Debug {
		level = logger.Info
	}
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(level),
	}

	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())
		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, errors.Wrap(err, "open postgres database")
		}
		return db, nil
	case "sqlite":
		datadir := filepath.Join(workdir, "data")
		if err := os.MkdirAll(datadir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create data directory")
		}
		dbfile := filepath.Join(datadir, cfg.Name+".db")
		db, err := gorm.Open(sqlite.Open(dbfile+"?_foreign_keys=on&_busy_timeout=5000"), gormConfig)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite database")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite does not tolerate concurrent writers
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, errors.Errorf("unsupported database type %q", cfg.Type)
	}
}
