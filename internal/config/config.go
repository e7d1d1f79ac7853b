package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig local datastore connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN builds the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// PortalConfig CeHuPo customer portal access settings.
type PortalConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// SyncConfig tuning knobs for a sync run. Concurrency and pacing are
// operational parameters, not protocol requirements.
type SyncConfig struct {
	MaxConcurrent int           // simultaneous in-flight portal fetches
	RequestDelay  time.Duration // minimum spacing between portal requests
	ClientLimit   int           // >0 caps processed entities (test runs)
	RunInterval   time.Duration // 0 = run once and exit
}

// MQTTConfig optional MQTT trigger for on-demand sync runs.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Config cehupo-sync service configuration.
type Config struct {
	Database DatabaseConfig
	Portal   PortalConfig
	Sync     SyncConfig
	MQTT     MQTTConfig
	Redis    struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
		PageTTL  time.Duration
	}
	Log struct {
		Level  string
		Format string
	}
	ExportPath string // when set, the run report is written there as XLSX
}

func Load() *Config {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "centralnimozek")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Portal.BaseURL = getEnv("PORTAL_BASE_URL", "https://customer.cehupo.cz")
	cfg.Portal.Username = getEnv("PORTAL_USERNAME", "")
	cfg.Portal.Password = getEnv("PORTAL_PASSWORD", "")
	cfg.Portal.Timeout = parseDuration(getEnv("PORTAL_TIMEOUT", "30s"), 30*time.Second)

	// Conservative defaults: the portal is a small shared system.
	cfg.Sync.MaxConcurrent = parseInt(getEnv("SYNC_MAX_CONCURRENT", "5"), 5)
	cfg.Sync.RequestDelay = parseDuration(getEnv("SYNC_REQUEST_DELAY", "500ms"), 500*time.Millisecond)
	cfg.Sync.ClientLimit = parseInt(getEnv("SYNC_CLIENT_LIMIT", "0"), 0)
	cfg.Sync.RunInterval = parseDuration(getEnv("SYNC_RUN_INTERVAL", "0"), 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "cehupo-sync")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "cehupo/sync/trigger")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Redis.PageTTL = parseDuration(getEnv("REDIS_PAGE_TTL", "1h"), time.Hour)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.ExportPath = getEnv("REPORT_EXPORT_PATH", "")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
