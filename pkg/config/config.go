package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileEnvName = "STOREFRONT_CONFIG"

// Store backends understood by localstore.Open.
const (
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds application configuration from the environment and an optional config file
type Config struct {
	// Local API
	AppPort string

	// Marketplace backend
	APIBaseURL string
	APITimeout time.Duration

	// Device-local persisted state
	StoreBackend string
	SQLitePath   string
	CartKey      string
	TokenKey     string

	// MySQL store backend
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis store backend
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// Checkout
	DefaultPrepaymentPercentage int

	LogLevel slog.Level

	// OpenTelemetry
	OTELMetricsEnabled        bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPHeaders   string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELServiceVersion        string
	OTELDeploymentEnvironment string
}

// LoadConfig loads configuration from the command line, .env and environment variables.
// It exits the process when the configuration cannot be loaded.
func LoadConfig() *Config {
	cfg, err := Load(os.Args[1:])
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// Load builds the configuration. Precedence, highest first: environment variables
// (including those loaded from the env file), the config file, defaults.
func Load(args []string) (*Config, error) {
	cmdLine := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	configFile := cmdLine.String("config", "", "optional config file (yaml, json or toml)")
	envFile := cmdLine.String("env-file", ".env", "optional dotenv file")
	if err := cmdLine.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	// The env file is optional, only report real read errors
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Error loading %s: %v", *envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	path := *configFile
	if env, ok := os.LookupEnv(configFileEnvName); ok && path == "" {
		path = env
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		AppPort: v.GetString("APP_PORT"),

		APIBaseURL: strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		APITimeout: v.GetDuration("API_TIMEOUT"),

		StoreBackend: strings.ToLower(v.GetString("STORE_BACKEND")),
		SQLitePath:   v.GetString("SQLITE_PATH"),
		CartKey:      v.GetString("CART_KEY"),
		TokenKey:     v.GetString("TOKEN_KEY"),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),

		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		RedisKeyPrefix: v.GetString("REDIS_KEY_PREFIX"),

		DefaultPrepaymentPercentage: v.GetInt("DEFAULT_PREPAYMENT_PERCENTAGE"),

		LogLevel: level,

		OTELMetricsEnabled:        v.GetBool("OTEL_METRICS_ENABLED"),
		OTELExporterOTLPEndpoint:  v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELExporterOTLPHeaders:   v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
		OTELExporterOTLPInsecure:  v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
		OTELServiceName:           v.GetString("OTEL_SERVICE_NAME"),
		OTELServiceVersion:        v.GetString("OTEL_SERVICE_VERSION"),
		OTELDeploymentEnvironment: v.GetString("OTEL_DEPLOYMENT_ENVIRONMENT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8090")

	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("API_TIMEOUT", "15s")

	v.SetDefault("STORE_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "storefront.db")
	v.SetDefault("CART_KEY", "cart")
	v.SetDefault("TOKEN_KEY", "token")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "storefront")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "storefront:")

	v.SetDefault("DEFAULT_PREPAYMENT_PERCENTAGE", 50)

	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("OTEL_METRICS_ENABLED", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "") // For SigNoz Cloud: signoz-ingestion-key=<key>
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", true)
	v.SetDefault("OTEL_SERVICE_NAME", "marketplace-storefront")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_DEPLOYMENT_ENVIRONMENT", "development")
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendMySQL, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL must not be empty")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be a positive duration, got %v", c.APITimeout)
	}
	if port := c.GetAppPortInt(); port < 1 || port > 65535 {
		return fmt.Errorf("APP_PORT must be a port number, got %q", c.AppPort)
	}
	if c.CartKey == "" || c.TokenKey == "" {
		return errors.New("CART_KEY and TOKEN_KEY must not be empty")
	}
	if c.CartKey == c.TokenKey {
		return errors.New("CART_KEY and TOKEN_KEY must differ")
	}
	if c.DefaultPrepaymentPercentage < 1 || c.DefaultPrepaymentPercentage > 100 {
		return fmt.Errorf("DEFAULT_PREPAYMENT_PERCENTAGE must be within 1..100, got %d", c.DefaultPrepaymentPercentage)
	}
	return nil
}

// GetDSN returns the MySQL DSN string
func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true&charset=utf8mb4"
}

// GetAppPortInt returns the application port as an integer, or 0 when it is not a number
func (c *Config) GetAppPortInt() int {
	port, err := strconv.Atoi(c.AppPort)
	if err != nil {
		return 0
	}
	return port
}
