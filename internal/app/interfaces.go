package app

import (
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/truthmd/truthlink/config"
	"github.com/truthmd/truthlink/internal/audit"
	"github.com/truthmd/truthlink/internal/hub"
	"github.com/truthmd/truthlink/internal/session"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SessionProvider provides session lifecycle and event fan-out access
type SessionProvider interface {
	SessionManager() *session.Manager
	Hub() *hub.Hub
	AuditLog() *audit.Recorder
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// AppContext combines all provider interfaces for full application context
// Services should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SessionProvider
	SchedulerProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	DropAll()
}
