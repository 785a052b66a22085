package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Paydibs  PaydibsConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// PaydibsConfig holds the merchant account and gateway policies.
type PaydibsConfig struct {
	MerchantID       string
	MerchantPassword string
	Environment      string // "test" or "production"
	TestAPIURL       string
	ProductionAPIURL string
	PageTimeout      int
	RestoreCart      bool
	RequireSignature bool
	PollWindow       time.Duration
	QueryTimeout     time.Duration
}

// APIURL returns the gateway base URL for the configured environment.
func (p *PaydibsConfig) APIURL() string {
	if p.Environment == "test" {
		return p.TestAPIURL
	}
	return p.ProductionAPIURL
}

// CheckoutConfig holds the storefront pages the redirect channel lands on.
type CheckoutConfig struct {
	SuccessURL string
	CartURL    string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("PAYDIBS_ENV", "production")
	viper.SetDefault("PAYDIBS_PAGE_TIMEOUT", 300)
	viper.SetDefault("PAYDIBS_RESTORE_CART", false)
	viper.SetDefault("PAYDIBS_REQUIRE_SIGNATURE", false)
	viper.SetDefault("PAYDIBS_POLL_WINDOW_MINUTES", 15)
	viper.SetDefault("PAYDIBS_QUERY_TIMEOUT", "30s")
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "/checkout/onepage/success")
	viper.SetDefault("CHECKOUT_CART_URL", "/checkout/cart")

	queryTimeout, err := time.ParseDuration(viper.GetString("PAYDIBS_QUERY_TIMEOUT"))
	if err != nil {
		queryTimeout = 30 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Paydibs: PaydibsConfig{
			MerchantID:       viper.GetString("PAYDIBS_MERCHANT_ID"),
			MerchantPassword: viper.GetString("PAYDIBS_MERCHANT_PASSWORD"),
			Environment:      viper.GetString("PAYDIBS_ENV"),
			TestAPIURL:       viper.GetString("PAYDIBS_TEST_API_URL"),
			ProductionAPIURL: viper.GetString("PAYDIBS_PRODUCTION_API_URL"),
			PageTimeout:      viper.GetInt("PAYDIBS_PAGE_TIMEOUT"),
			RestoreCart:      viper.GetBool("PAYDIBS_RESTORE_CART"),
			RequireSignature: viper.GetBool("PAYDIBS_REQUIRE_SIGNATURE"),
			PollWindow:       time.Duration(viper.GetInt("PAYDIBS_POLL_WINDOW_MINUTES")) * time.Minute,
			QueryTimeout:     queryTimeout,
		},
		Checkout: CheckoutConfig{
			SuccessURL: viper.GetString("CHECKOUT_SUCCESS_URL"),
			CartURL:    viper.GetString("CHECKOUT_CART_URL"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Paydibs.MerchantID == "" {
		log.Println("WARNING: PAYDIBS_MERCHANT_ID is not set")
	}
	if cfg.Paydibs.MerchantPassword == "" {
		log.Println("WARNING: PAYDIBS_MERCHANT_PASSWORD is not set")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
