package config

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/rpattn/chronicle/internal/db"
)

// Config is everything the core consumes from its environment: the database,
// the per-entity-type ownership-field mapping, queue retry/limit ceilings,
// and the optional event stream.
type Config struct {
	Server   ServerConfig
	Database db.Config
	Audit    AuditConfig
	Queue    QueueConfig
	Kafka    KafkaConfig
	LogLevel string
}

type ServerConfig struct {
	Addr string
}

// AuditConfig carries the read-side knobs. Ownership maps each entity type to
// the dotted field path inside a snapshot that names the record's owner.
type AuditConfig struct {
	Ownership    map[string]string
	DefaultLimit int
	MaxLimit     int
}

// OwnershipField returns the configured ownership field path for an entity
// type, or "" when none is mapped.
func (c AuditConfig) OwnershipField(entityType string) string {
	return c.Ownership[entityType]
}

// EntityTypes returns every entity type with an ownership mapping; these are
// the sources of the all-types recently-deleted merge.
func (c AuditConfig) EntityTypes() []string {
	types := make([]string, 0, len(c.Ownership))
	for entityType := range c.Ownership {
		types = append(types, entityType)
	}
	return types
}

// QueueConfig configures the client-side tombstone queue.
type QueueConfig struct {
	MaxRetries   int
	Path         string
	RemoteURL    string
	KickInterval time.Duration
}

// KafkaConfig configures optional audit-event publishing. Empty brokers
// disables it.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// Load reads config.yaml from the given path, with CHRONICLE_* environment
// overrides, falling back to defaults when no file is present.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("CHRONICLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("queue.path")
	v.BindEnv("queue.remote_url")
	v.BindEnv("kafka.brokers")
	v.BindEnv("log.level")

	if err := v.ReadInConfig(); err != nil {
		log.Info("no config.yaml found, using defaults and env vars")
	} else {
		log.WithField("file", v.ConfigFileUsed()).Info("loaded config.yaml")
	}

	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("audit.ownership") {
		cfg.Audit.Ownership = v.GetStringMapString("audit.ownership")
	}
	if v.IsSet("audit.default_limit") {
		cfg.Audit.DefaultLimit = v.GetInt("audit.default_limit")
	}
	if v.IsSet("audit.max_limit") {
		cfg.Audit.MaxLimit = v.GetInt("audit.max_limit")
	}
	if v.IsSet("queue.max_retries") {
		cfg.Queue.MaxRetries = v.GetInt("queue.max_retries")
	}
	if v.IsSet("queue.path") {
		cfg.Queue.Path = v.GetString("queue.path")
	}
	if v.IsSet("queue.remote_url") {
		cfg.Queue.RemoteURL = v.GetString("queue.remote_url")
	}
	if v.IsSet("queue.kick_interval") {
		cfg.Queue.KickInterval = v.GetDuration("queue.kick_interval")
	}
	if v.IsSet("kafka.brokers") {
		cfg.Kafka.Brokers = v.GetString("kafka.brokers")
	}
	if v.IsSet("kafka.topic") {
		cfg.Kafka.Topic = v.GetString("kafka.topic")
	}
	if v.IsSet("log.level") {
		cfg.LogLevel = v.GetString("log.level")
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: db.DefaultConfig(),
		Audit: AuditConfig{
			Ownership:    map[string]string{},
			DefaultLimit: 50,
			MaxLimit:     200,
		},
		Queue: QueueConfig{
			MaxRetries:   5,
			Path:         "chronicle-queue.db",
			RemoteURL:    "http://localhost:8080",
			KickInterval: 30 * time.Second,
		},
		Kafka:    KafkaConfig{Topic: "chronicle.audit"},
		LogLevel: "info",
	}
}
