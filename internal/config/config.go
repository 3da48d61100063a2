package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	StorageDriver string

	DB struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}

	SQLitePath string

	Mongo struct {
		URI      string
		Database string
		TLS      bool
	}

	// KafkaBrokers and KafkaTopicIssue enable issue lifecycle events; either empty disables them.
	KafkaBrokers    []string
	KafkaTopicIssue string
}

func init() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("http_port", "8097")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_driver", DriverPostgres)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_database", "issue_tracker")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("sqlite_path", "data/issues.db")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "issue_tracker")
	v.SetDefault("mongo_tls", false)
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic_issue", "")

	v.AutomaticEnv()
	_ = v.BindEnv("http_port", "APP_PORT", "HTTP_PORT")
}

// Load reads .env files into the environment and resolves the configuration
// from the global viper instance, so bound command-line flags take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	return FromViper(viper.GetViper()), nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{
		AppHost:         v.GetString("app_host"),
		HTTPPort:        v.GetString("http_port"),
		AppEnv:          v.GetString("app_env"),
		LogLevel:        v.GetString("log_level"),
		StorageDriver:   strings.ToLower(strings.TrimSpace(v.GetString("storage_driver"))),
		SQLitePath:      v.GetString("sqlite_path"),
		KafkaBrokers:    ParseList(v.GetString("kafka_brokers")),
		KafkaTopicIssue: v.GetString("kafka_topic_issue"),
	}
	cfg.DB.Host = v.GetString("db_host")
	cfg.DB.Port = v.GetString("db_port")
	cfg.DB.User = v.GetString("db_user")
	cfg.DB.Password = v.GetString("db_password")
	cfg.DB.Database = v.GetString("db_database")
	cfg.DB.SSLMode = v.GetString("db_sslmode")
	cfg.Mongo.URI = v.GetString("mongo_uri")
	cfg.Mongo.Database = v.GetString("mongo_database")
	cfg.Mongo.TLS = v.GetBool("mongo_tls")
	return cfg
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DB.Host == "" || c.DB.Database == "" {
			return errors.New("config: DB_HOST and DB_DATABASE are required")
		}
		if c.AppEnv == "production" && c.DB.Password == "" {
			return errors.New("config: in production DB_PASSWORD is required")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: SQLITE_PATH is required for the sqlite driver")
		}
	case DriverMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return errors.New("config: MONGO_URI and MONGO_DATABASE are required for the mongo driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.HTTPPort == "" {
		return errors.New("config: APP_PORT is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// EventsEnabled reports whether issue events should be published to Kafka.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopicIssue != ""
}

// ParseList splits "host1:9092, host2:9092" into trimmed, non-empty items.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
