package app

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"github.com/truthmd/truthlink/config"
	"github.com/truthmd/truthlink/internal/audit"
	"github.com/truthmd/truthlink/internal/domain"
	"github.com/truthmd/truthlink/internal/hub"
	"github.com/truthmd/truthlink/internal/session"
	"github.com/truthmd/truthlink/internal/walink"
	"github.com/truthmd/truthlink/pkg/idgen"
)

type Application struct {
	appConfig *config.AppConfig
	gormDB    *gorm.DB
	sched     *cron.Cron

	store    *session.Store
	eventHub *hub.Hub
	manager  *session.Manager
	auditLog *audit.Recorder
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SessionProvider   = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

func (a *Application) SessionManager() *session.Manager {
	return a.manager
}

func (a *Application) Hub() *hub.Hub {
	return a.eventHub
}

func (a *Application) AuditLog() *audit.Recorder {
	return a.auditLog
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Init(cfg *config.AppConfig) error {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	a.initLogger(cfg)

	if err = idgen.Setup(cfg.System.NodeID); err != nil {
		return err
	}

	// Initialize database connection
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	a.gormDB, err = getDatabase(cfg.Database, cfg.System.Workdir)
	if err != nil {
		return err
	}
	zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)

	// Ensure database schema is migrated before accepting sessions
	if err = a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
	}

	sqlDB, err := a.gormDB.DB()
	if err != nil {
		return err
	}
	if cfg.Database.Type == "sqlite" {
		// whatsmeow's device store schema relies on foreign keys
		if _, err = sqlDB.ExecContext(context.Background(), "PRAGMA foreign_keys = ON;"); err != nil {
			zap.L().Warn("unable to enable sqlite foreign_keys pragma", zap.Error(err))
		}
	}

	linkFactory, err := walink.NewFactory(context.Background(), sqlDB, cfg.Database.Type)
	if err != nil {
		return err
	}

	a.auditLog = audit.NewRecorder(a.gormDB)
	a.store = session.NewStore(nil)
	a.eventHub = hub.New(nil)
	a.manager = session.NewManager(a.store, linkFactory.New, a.eventHub, session.Options{
		IdleTimeout: time.Duration(cfg.Session.IdleTimeout) * time.Second,
		RemoveDelay: time.Duration(cfg.Session.RemoveDelay) * time.Second,
		Audit:       a.auditLog,
	})
	a.eventHub.SetSnapshot(a.manager.SnapshotEvents)

	a.initJob()
	zap.L().Info("application initialized", zap.String("appid", cfg.System.Appid))
	return nil
}

func (a *Application) initLogger(cfg *config.AppConfig) {
	// Initialize zap logger
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) MigrateDB(track bool) error {
	if track {
		return a.gormDB.Debug().Migrator().AutoMigrate(domain.Tables...)
	}
	return a.gormDB.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		a.sched.Stop()
	}

	if a.manager != nil {
		a.manager.Shutdown()
	}

	_ = zap.L().Sync()
}
