package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "debug" enables admin routes and direct crediting
}

type SQLiteConfig struct {
	Path         string `mapstructure:"path"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	BalanceEvents string `mapstructure:"balance_events"`
}

type BusinessConfig struct {
	StartingBalance     int64  `mapstructure:"starting_balance"`
	FreeGrantAmount     int64  `mapstructure:"free_grant_amount"`
	FreeGrantIntervalS  int64  `mapstructure:"free_grant_interval_seconds"`
	BalanceType         string `mapstructure:"balance_type"` // display label, e.g. "Credits"
	MaxOutboxRetryCount int    `mapstructure:"max_outbox_retry_count"`
}

type PaymentConfig struct {
	// RedirectURL is a template with {account_id} and {amount} placeholders.
	// No gateway integration here, the service only hands the URL back.
	RedirectURL      string `mapstructure:"redirect_url"`
	CurrencyUnit     string `mapstructure:"currency_unit"`
	CurrencyDecimals int    `mapstructure:"currency_decimals"`
}

type CatalogConfig struct {
	Packs   []PackConfig   `mapstructure:"packs"`
	Coupons []CouponConfig `mapstructure:"coupons"`
}

type PackConfig struct {
	Name        string   `mapstructure:"name"`
	DisplayName string   `mapstructure:"display_name"`
	Size        int64    `mapstructure:"size"`
	Price       float64  `mapstructure:"price"`
	Currency    string   `mapstructure:"currency"`
	Coupons     []string `mapstructure:"coupons"` // coupon codes valid for this pack
}

type CouponConfig struct {
	Code            string `mapstructure:"code"`
	DiscountPercent int    `mapstructure:"discount_percent"`
}

// IsDebug reports whether the service runs with admin routes and direct
// crediting enabled.
func (c *Config) IsDebug() bool {
	return c.Server.Mode != "release"
}

// LoadConfig reads the yaml config file and applies defaults.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("sqlite.path", "credit.db")
	viper.SetDefault("sqlite.max_open_conns", 1)
	viper.SetDefault("business.starting_balance", 10)
	viper.SetDefault("business.free_grant_amount", 10)
	viper.SetDefault("business.free_grant_interval_seconds", 86400)
	viper.SetDefault("business.balance_type", "Credits")
	viper.SetDefault("business.max_outbox_retry_count", 3)
	viper.SetDefault("payment.currency_unit", "$")
	viper.SetDefault("payment.currency_decimals", 2)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("parse config file: %v", err)
	}

	return config
}
