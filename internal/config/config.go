package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Log       LogConfig
	Auth      AuthConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Ledger    LedgerConfig
}

type AppConfig struct {
	Name            string
	Env             string
	Port            string
	Debug           bool
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects the store. The sqlite driver keeps the whole
// ledger in a single data file at Path.
type DatabaseConfig struct {
	Driver          string
	Path            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	Timezone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level         string
	Format        string
	Output        string
	GormLevel     string
	SlowThreshold time.Duration
}

type AuthConfig struct {
	Enabled     bool
	Secret      string
	ExpiryHours time.Duration
	Issuer      string
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

// LedgerConfig holds the business constants of the installment ledger
type LedgerConfig struct {
	SaleNumberPrefix        string
	UpcomingDays            int
	PlaceholderProductName  string
	PlaceholderCustomerName string
	DefaultLateFee          float64
	MaxInstallments         int
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables: %v", err)
	}

	setDefaults()

	return &Config{
		App: AppConfig{
			Name:            viper.GetString("APP_NAME"),
			Env:             viper.GetString("APP_ENV"),
			Port:            viper.GetString("APP_PORT"),
			Debug:           viper.GetBool("APP_DEBUG"),
			ShutdownTimeout: time.Duration(viper.GetInt("APP_SHUTDOWN_TIMEOUT_SECONDS")) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(viper.GetString("DB_DRIVER")),
			Path:            viper.GetString("DB_PATH"),
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetString("DB_PORT"),
			Name:            viper.GetString("DB_NAME"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			SSLMode:         viper.GetString("DB_SSL_MODE"),
			Timezone:        viper.GetString("DB_TIMEZONE"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: time.Duration(viper.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute,
		},
		Log: LogConfig{
			Level:         viper.GetString("LOG_LEVEL"),
			Format:        viper.GetString("LOG_FORMAT"),
			Output:        viper.GetString("LOG_OUTPUT"),
			GormLevel:     viper.GetString("LOG_GORM_LEVEL"),
			SlowThreshold: time.Duration(viper.GetInt("LOG_SLOW_QUERY_MS")) * time.Millisecond,
		},
		Auth: AuthConfig{
			Enabled:     viper.GetBool("AUTH_ENABLED"),
			Secret:      viper.GetString("JWT_SECRET"),
			ExpiryHours: time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
			Issuer:      viper.GetString("JWT_ISSUER"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Ledger: LedgerConfig{
			SaleNumberPrefix:        viper.GetString("LEDGER_SALE_NUMBER_PREFIX"),
			UpcomingDays:            viper.GetInt("LEDGER_UPCOMING_DAYS"),
			PlaceholderProductName:  viper.GetString("LEDGER_PLACEHOLDER_PRODUCT_NAME"),
			PlaceholderCustomerName: viper.GetString("LEDGER_PLACEHOLDER_CUSTOMER_NAME"),
			DefaultLateFee:          viper.GetFloat64("LEDGER_DEFAULT_LATE_FEE"),
			MaxInstallments:         viper.GetInt("LEDGER_MAX_INSTALLMENTS"),
		},
	}
}

func setDefaults() {
	viper.SetDefault("APP_NAME", "installments-api")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("APP_SHUTDOWN_TIMEOUT_SECONDS", 10)
	viper.SetDefault("DB_DRIVER", "sqlite")
	viper.SetDefault("DB_PATH", "./data/ledger.db")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "installments")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "UTC")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("LOG_OUTPUT", "stdout")
	viper.SetDefault("LOG_GORM_LEVEL", "warn")
	viper.SetDefault("LOG_SLOW_QUERY_MS", 200)
	viper.SetDefault("AUTH_ENABLED", false)
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_EXPIRY_HOURS", 720)
	viper.SetDefault("JWT_ISSUER", "installments-api")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("LEDGER_SALE_NUMBER_PREFIX", "VTA")
	viper.SetDefault("LEDGER_UPCOMING_DAYS", 3)
	viper.SetDefault("LEDGER_PLACEHOLDER_PRODUCT_NAME", "Producto no disponible")
	viper.SetDefault("LEDGER_PLACEHOLDER_CUSTOMER_NAME", "Cliente importado")
	viper.SetDefault("LEDGER_DEFAULT_LATE_FEE", 0)
	viper.SetDefault("LEDGER_MAX_INSTALLMENTS", 120)
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}

// SQLiteDSN returns the data file DSN with foreign keys and WAL enabled
func (c *DatabaseConfig) SQLiteDSN() string {
	if c.Path == ":memory:" {
		return "file::memory:?_foreign_keys=on"
	}
	return c.Path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}
