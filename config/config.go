package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	NodeID   int64  `yaml:"node_id" json:"node_id"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type DBConfig struct {
	Type   string `yaml:"type" json:"type"`
	Host   string `yaml:"host" json:"host"`
	Port   int    `yaml:"port" json:"port"`
	Name   string `yaml:"name" json:"name"`
	User   string `yaml:"user" json:"user"`
	Passwd string `yaml:"passwd" json:"passwd"`
	Debug  bool   `yaml:"debug" json:"debug"`
}

// SessionConfig tunes the lifecycle controller. Durations are in seconds.
type SessionConfig struct {
	IdleTimeout    int `yaml:"idle_timeout" json:"idle_timeout"`
	SweepInterval  int `yaml:"sweep_interval" json:"sweep_interval"`
	RemoveDelay    int `yaml:"remove_delay" json:"remove_delay"`
	AuditRetention int `yaml:"audit_retention" json:"audit_retention"` // days
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Session  SessionConfig `yaml:"session" json:"session"`
	Logger   LogConfig     `yaml:"logger" json:"logger"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "TruthLink",
			Location: "Asia/Jakarta",
			Workdir:  "/var/truthlink",
			NodeID:   1,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8098,
		},
		Database: DBConfig{
			Type: "sqlite",
			Name: "truthlink",
		},
		Session: SessionConfig{
			IdleTimeout:    300,
			SweepInterval:  60,
			RemoveDelay:    30,
			AuditRetention: 30,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: false,
			Filename:   "/var/truthlink/truthlink.log",
		},
	}
}

// LoadConfig reads yaml from path over the defaults, then applies
// environment overrides. A missing file is not an error; the defaults plus
// environment win.
func LoadConfig(path string) *AppConfig {
	cfg := DefaultConfig()
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	cfg.applyEnv()
	if cfg.Logger.Filename == "" {
		cfg.Logger.Filename = filepath.Join(cfg.System.Workdir, "truthlink.log")
	}
	return cfg
}

func (c *AppConfig) applyEnv() {
	setStr(&c.System.Workdir, "TRUTHLINK_WORKDIR")
	setStr(&c.System.Location, "TRUTHLINK_LOCATION")
	setStr(&c.Web.Host, "TRUTHLINK_WEB_HOST")
	setInt(&c.Web.Port, "TRUTHLINK_WEB_PORT")
	setStr(&c.Database.Type, "TRUTHLINK_DB_TYPE")
	setStr(&c.Database.Host, "TRUTHLINK_DB_HOST")
	setInt(&c.Database.Port, "TRUTHLINK_DB_PORT")
	setStr(&c.Database.Name, "TRUTHLINK_DB_NAME")
	setStr(&c.Database.User, "TRUTHLINK_DB_USER")
	setStr(&c.Database.Passwd, "TRUTHLINK_DB_PWD")
	setInt(&c.Session.IdleTimeout, "TRUTHLINK_SESSION_IDLE_TIMEOUT")
	setInt(&c.Session.SweepInterval, "TRUTHLINK_SESSION_SWEEP_INTERVAL")
	setInt(&c.Session.RemoveDelay, "TRUTHLINK_SESSION_REMOVE_DELAY")
	setInt(&c.Session.AuditRetention, "TRUTHLINK_SESSION_AUDIT_RETENTION")
	setStr(&c.Logger.Mode, "TRUTHLINK_LOGGER_MODE")
}

func setStr(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}

func setInt(target *int, env string) {
	if v := os.Getenv(env); v != "" {
		*target = cast.ToInt(v)
	}
}
