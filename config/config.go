package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
	DriverRedis  = "redis"
)

type Config struct {
	Env string `validate:"oneof=development production"`

	Discord  DiscordConfig
	Storage  StorageConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Announce AnnounceConfig
	Delivery DeliveryConfig
}

type DiscordConfig struct {
	Token string
	// Guild is informational only; the bot serves every guild it is in.
	Guild string
}

type StorageConfig struct {
	Driver   string `validate:"oneof=sqlite json redis"`
	DBPath   string `validate:"required_if=Driver sqlite"`
	DataFile string `validate:"required_if=Driver json"`
	Redis    RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	Key      string `validate:"required"`
}

// HTTPConfig configures the health and metrics server. An empty Addr
// disables it.
type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json console"`
}

// AnnounceConfig tunes the hourly announcement check.
type AnnounceConfig struct {
	WakeOffset time.Duration `validate:"min=0s,max=59m"`
}

// DeliveryConfig tunes the announcement delivery workers.
type DeliveryConfig struct {
	Workers    int           `validate:"min=1"`
	Retries    int           `validate:"min=0"`
	RetryDelay time.Duration `validate:"min=0s"`
}

// flagKeys maps command line flags onto the environment keys they override.
var flagKeys = map[string]string{
	"token":     "DISCORD_TOKEN",
	"storage":   "STORAGE_DRIVER",
	"db":        "DB_PATH",
	"data-file": "DATA_FILE",
	"http-addr": "HTTP_ADDR",
	"log-level": "LOG_LEVEL",
}

// Load reads configuration from .env, the environment and, when given, the
// command line flags, in increasing order of precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	cfg.Env = v.GetString("ENV")

	cfg.Discord = DiscordConfig{
		Token: v.GetString("DISCORD_TOKEN"),
		Guild: v.GetString("DISCORD_GUILD"),
	}

	cfg.Storage = StorageConfig{
		Driver:   v.GetString("STORAGE_DRIVER"),
		DBPath:   v.GetString("DB_PATH"),
		DataFile: v.GetString("DATA_FILE"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Key:      v.GetString("REDIS_KEY"),
		},
	}

	cfg.HTTP = HTTPConfig{Addr: v.GetString("HTTP_ADDR")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Announce = AnnounceConfig{
		WakeOffset: parseDuration(v.GetString("ANNOUNCE_WAKE_OFFSET"), 5*time.Minute),
	}

	cfg.Delivery = DeliveryConfig{
		Workers:    v.GetInt("DELIVERY_WORKERS"),
		Retries:    v.GetInt("DELIVERY_RETRIES"),
		RetryDelay: parseDuration(v.GetString("DELIVERY_RETRY_DELAY"), 2*time.Second),
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)

	v.SetDefault("DISCORD_TOKEN", "")
	v.SetDefault("DISCORD_GUILD", "")

	v.SetDefault("STORAGE_DRIVER", DriverSQLite)
	v.SetDefault("DB_PATH", "birthdays.db")
	v.SetDefault("DATA_FILE", "data.json")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY", "birthdaybot:data")

	v.SetDefault("HTTP_ADDR", ":8080")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ANNOUNCE_WAKE_OFFSET", "5m")

	v.SetDefault("DELIVERY_WORKERS", 1)
	v.SetDefault("DELIVERY_RETRIES", 3)
	v.SetDefault("DELIVERY_RETRY_DELAY", "2s")
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
