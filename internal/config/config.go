package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	ierr "github.com/renewly/renewly/internal/errors"
	"github.com/spf13/viper"
)

// DeploymentMode identifies what the current process is serving.
type DeploymentMode string

const (
	ModeLocal  DeploymentMode = "local"
	ModeServer DeploymentMode = "server"
	ModeWorker DeploymentMode = "worker"
)

// Configuration is the root configuration for the service, loaded from
// environment variables and an optional config file.
type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Email      EmailConfig      `mapstructure:"email"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Billing    BillingConfig    `mapstructure:"billing"`
}

type DeploymentConfig struct {
	Mode DeploymentMode `mapstructure:"mode" default:"local"`
}

type ServerConfig struct {
	Address string `mapstructure:"address" default:":8080"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" default:"info"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" default:"localhost"`
	Port                   int    `mapstructure:"port" default:"5432"`
	User                   string `mapstructure:"user" default:"renewly"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" default:"renewly"`
	SSLMode                string `mapstructure:"sslmode" default:"disable"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"20"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"30"`
}

// DSN returns the postgres connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host" default:"localhost"`
	Port     int    `mapstructure:"port" default:"6379"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" default:"0"`
}

type CacheConfig struct {
	Type string `mapstructure:"type" default:"inmemory"`
}

type TemporalConfig struct {
	Address   string `mapstructure:"address" default:"localhost:7233"`
	Namespace string `mapstructure:"namespace" default:"default"`
	TaskQueue string `mapstructure:"task_queue" default:"billing"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address" default:"billing@renewly.dev"`
	FromName    string `mapstructure:"from_name" default:"Renewly"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment" default:"development"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

// BillingConfig carries the tunable billing policy knobs. The defaults are the
// production values; tests override them through the service options.
type BillingConfig struct {
	DunningThresholdHours         int `mapstructure:"dunning_threshold_hours" default:"120"`
	SCACompletionWindowHours      int `mapstructure:"sca_completion_window_hours" default:"26"`
	PreorderCancellationDelayDays int `mapstructure:"preorder_cancellation_delay_days" default:"14"`
	SweepBatchSize                int `mapstructure:"sweep_batch_size" default:"100"`
	SweepStaggerMinutes           int `mapstructure:"sweep_stagger_minutes" default:"5"`
}

// DunningThreshold returns the absolute overdue duration after which a
// subscription with a failing charge is terminated.
func (c BillingConfig) DunningThreshold() time.Duration {
	return time.Duration(c.DunningThresholdHours) * time.Hour
}

// SCACompletionWindow returns how long a purchase may stay in progress before
// its authorization is considered abandoned.
func (c BillingConfig) SCACompletionWindow() time.Duration {
	return time.Duration(c.SCACompletionWindowHours) * time.Hour
}

// PreorderCancellationDelay returns how long a declined preorder buyer gets to
// update payment details before the preorder is cancelled.
func (c BillingConfig) PreorderCancellationDelay() time.Duration {
	return time.Duration(c.PreorderCancellationDelayDays) * 24 * time.Hour
}

// SweepStagger returns the per-batch offset of the discovery sweep.
func (c BillingConfig) SweepStagger() time.Duration {
	return time.Duration(c.SweepStaggerMinutes) * time.Minute
}

// NewConfig loads the configuration from the environment. A local .env file is
// honored when present.
func NewConfig() (*Configuration, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("RENEWLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, ierr.WithError(err).
				WithHint("Failed to read config file").
				Mark(ierr.ErrSystem)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal configuration").
			Mark(ierr.ErrSystem)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "renewly")
	v.SetDefault("postgres.dbname", "renewly")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("cache.type", "inmemory")
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "billing")
	v.SetDefault("email.from_address", "billing@renewly.dev")
	v.SetDefault("email.from_name", "Renewly")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
	v.SetDefault("billing.dunning_threshold_hours", 120)
	v.SetDefault("billing.sca_completion_window_hours", 26)
	v.SetDefault("billing.preorder_cancellation_delay_days", 14)
	v.SetDefault("billing.sweep_batch_size", 100)
	v.SetDefault("billing.sweep_stagger_minutes", 5)
}

// Validate checks the configuration for obviously broken values.
func (c *Configuration) Validate() error {
	if c.Billing.DunningThresholdHours <= 0 {
		return ierr.NewError("dunning threshold must be positive").
			Mark(ierr.ErrValidation)
	}
	if c.Billing.SCACompletionWindowHours <= 0 {
		return ierr.NewError("sca completion window must be positive").
			Mark(ierr.ErrValidation)
	}
	if c.Billing.SweepBatchSize <= 0 {
		return ierr.NewError("sweep batch size must be positive").
			Mark(ierr.ErrValidation)
	}
	return nil
}
