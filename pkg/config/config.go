package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	Port        string
	StoreDriver string
	DatabaseURL string
	AutoMigrate bool
	RedisAddr   string

	LogLevel  string
	LogFormat string

	DefaultTaxRate      decimal.Decimal // percent
	DefaultCurrency     string
	InvoiceNumberPrefix string

	WSPingInterval time.Duration
	WSSendBuffer   int

	PaymentRateLimit string
}

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	// Missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("APP_NAME", "Repair Billing v1.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", true)
	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DEFAULT_TAX_RATE", "16")
	v.SetDefault("DEFAULT_CURRENCY", "USD")
	v.SetDefault("INVOICE_NUMBER_PREFIX", "INV")
	v.SetDefault("WS_PING_INTERVAL", "30s")
	v.SetDefault("WS_SEND_BUFFER", 32)
	v.SetDefault("PAYMENT_RATE_LIMIT", "120-M")
	v.AutomaticEnv()

	cfg := &Config{
		AppName:             v.GetString("APP_NAME"),
		Port:                v.GetString("PORT"),
		StoreDriver:         v.GetString("STORE_DRIVER"),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		RedisAddr:           v.GetString("REDIS_ADDRESS"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		LogFormat:           v.GetString("LOG_FORMAT"),
		DefaultCurrency:     v.GetString("DEFAULT_CURRENCY"),
		InvoiceNumberPrefix: v.GetString("INVOICE_NUMBER_PREFIX"),
		WSSendBuffer:        v.GetInt("WS_SEND_BUFFER"),
		PaymentRateLimit:    v.GetString("PAYMENT_RATE_LIMIT"),
	}

	if cfg.StoreDriver != StoreDriverPostgres && cfg.StoreDriver != StoreDriverMemory {
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.DatabaseURL == "" && cfg.StoreDriver == StoreDriverPostgres {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			os.Getenv("DB_HOST"),
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_NAME"),
			os.Getenv("DB_PORT"),
		)
	}

	taxRate, err := decimal.NewFromString(v.GetString("DEFAULT_TAX_RATE"))
	if err != nil || taxRate.IsNegative() {
		log.Printf("Warning: Invalid value for DEFAULT_TAX_RATE ('%s'). Defaulting to 16.\n", v.GetString("DEFAULT_TAX_RATE"))
		taxRate = decimal.NewFromInt(16)
	}
	cfg.DefaultTaxRate = taxRate

	pingInterval, err := time.ParseDuration(v.GetString("WS_PING_INTERVAL"))
	if err != nil || pingInterval <= 0 {
		log.Printf("Warning: Invalid value for WS_PING_INTERVAL ('%s'). Defaulting to 30s.\n", v.GetString("WS_PING_INTERVAL"))
		pingInterval = 30 * time.Second
	}
	cfg.WSPingInterval = pingInterval

	if cfg.WSSendBuffer <= 0 {
		cfg.WSSendBuffer = 32
	}
	if len(cfg.DefaultCurrency) != 3 {
		log.Printf("Warning: Invalid value for DEFAULT_CURRENCY ('%s'). Defaulting to USD.\n", cfg.DefaultCurrency)
		cfg.DefaultCurrency = "USD"
	}

	return cfg, nil
}
