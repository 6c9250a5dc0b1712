package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	DB       DBConfig       `mapstructure:"db"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	BaseURL     string   `mapstructure:"base_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	AccessTTL   time.Duration `mapstructure:"access_ttl"`
	RefreshTTL  time.Duration `mapstructure:"refresh_ttl"`
	AdminEmails []string      `mapstructure:"admin_emails"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Dir string `mapstructure:"dir"`
}

type PaymentsConfig struct {
	Currency    string            `mapstructure:"currency"`
	Flutterwave FlutterwaveConfig `mapstructure:"flutterwave"`
	Coinbase    CoinbaseConfig    `mapstructure:"coinbase"`
}

type FlutterwaveConfig struct {
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

type CoinbaseConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IsAdmin reports whether email belongs to the configured admin list.
func (c AuthConfig) IsAdmin(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), email) {
			return true
		}
	}
	return false
}

var defaults = map[string]any{
	"server.port":         "8080",
	"server.base_url":     "http://localhost:8080",
	"server.cors_origins": []string{"http://localhost:5173"},

	"db.dsn": "host=localhost port=5432 user=postgres password=postgres dbname=storefront sslmode=disable",

	"auth.jwt_secret":   "",
	"auth.access_ttl":   time.Hour,
	"auth.refresh_ttl":  30 * 24 * time.Hour,
	"auth.admin_emails": []string{},

	"redis.enabled":  false,
	"redis.addr":     "localhost:6379",
	"redis.password": "",
	"redis.db":       0,
	"redis.ttl":      5 * time.Minute,

	"storage.dir": "./data/storage",

	"payments.currency":                "NGN",
	"payments.flutterwave.public_key":  "",
	"payments.flutterwave.secret_key":  "",
	"payments.flutterwave.base_url":    "https://api.flutterwave.com",
	"payments.coinbase.api_key":        "",
	"payments.coinbase.webhook_secret": "",
	"payments.coinbase.base_url":       "https://api.commerce.coinbase.com",

	"log.level":  "info",
	"log.format": "text",
}

// LoadConfig reads .env, then config.yaml, then STOREFRONT_* environment
// variables. A missing .env or config file is not an error.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./")
	v.AddConfigPath("./deploy/")
	v.AddConfigPath("/etc/storefront/")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("auth token lifetimes must be positive")
	}
	return nil
}
