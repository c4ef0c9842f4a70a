package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Checkout  CheckoutConfig
	Sweep     SweepConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	TrustedProxies   []string
	CORSAllowOrigins []string
}

// CheckoutConfig holds the reservation and settlement tunables
type CheckoutConfig struct {
	HoldDuration        time.Duration // how long a hold reserves availability
	MaxHoldQuantity     int64         // per-hold quantity cap
	AdmissionLockTTL    time.Duration // hard timeout on the per-product admission lock
	AdmissionLockWait   time.Duration // blocking wait budget for the admission lock
	AdmissionLockStrict bool          // surface SystemBusy instead of proceeding when the lock backend is down
	TxnMaxAttempts      int           // transaction attempt budget under deadlock
	DeadlockBackoffMin  time.Duration
	DeadlockBackoffMax  time.Duration
	StockCacheTTL       time.Duration // TTL of the cached availability view
	OrderWaitAttempts   int           // webhook poll attempts for a racing order creation
	OrderWaitSleep      time.Duration // sleep between webhook poll attempts
}

// SweepConfig holds sweeper configuration
type SweepConfig struct {
	Enabled  bool
	Period   time.Duration
	PageSize int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FLASH_ prefix (e.g., FLASH_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FLASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans default to false when unset, so the only on-by-default
	// switch is registered explicitly.
	v.SetDefault("sweep.enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
		},
		Checkout: CheckoutConfig{
			HoldDuration:        v.GetDuration("checkout.hold_duration"),
			MaxHoldQuantity:     v.GetInt64("checkout.max_hold_quantity"),
			AdmissionLockTTL:    v.GetDuration("checkout.admission_lock_ttl"),
			AdmissionLockWait:   v.GetDuration("checkout.admission_lock_wait"),
			AdmissionLockStrict: v.GetBool("checkout.admission_lock_strict"),
			TxnMaxAttempts:      v.GetInt("checkout.txn_max_attempts"),
			DeadlockBackoffMin:  v.GetDuration("checkout.deadlock_backoff_min"),
			DeadlockBackoffMax:  v.GetDuration("checkout.deadlock_backoff_max"),
			StockCacheTTL:       v.GetDuration("checkout.stock_cache_ttl"),
			OrderWaitAttempts:   v.GetInt("checkout.order_wait_attempts"),
			OrderWaitSleep:      v.GetDuration("checkout.order_wait_sleep"),
		},
		Sweep: SweepConfig{
			Enabled:  v.GetBool("sweep.enabled"),
			Period:   v.GetDuration("sweep.period"),
			PageSize: v.GetInt("sweep.page_size"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "flashsale-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "flashsale"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.Checkout.HoldDuration == 0 {
		cfg.Checkout.HoldDuration = 2 * time.Minute
	}
	if cfg.Checkout.MaxHoldQuantity == 0 {
		cfg.Checkout.MaxHoldQuantity = 100
	}
	if cfg.Checkout.AdmissionLockTTL == 0 {
		cfg.Checkout.AdmissionLockTTL = 10 * time.Second
	}
	if cfg.Checkout.AdmissionLockWait == 0 {
		cfg.Checkout.AdmissionLockWait = 5 * time.Second
	}
	if cfg.Checkout.TxnMaxAttempts == 0 {
		cfg.Checkout.TxnMaxAttempts = 5
	}
	if cfg.Checkout.DeadlockBackoffMin == 0 {
		cfg.Checkout.DeadlockBackoffMin = 10 * time.Millisecond
	}
	if cfg.Checkout.DeadlockBackoffMax == 0 {
		cfg.Checkout.DeadlockBackoffMax = 50 * time.Millisecond
	}
	if cfg.Checkout.StockCacheTTL == 0 {
		cfg.Checkout.StockCacheTTL = 5 * time.Second
	}
	if cfg.Checkout.OrderWaitAttempts == 0 {
		cfg.Checkout.OrderWaitAttempts = 3
	}
	if cfg.Checkout.OrderWaitSleep == 0 {
		cfg.Checkout.OrderWaitSleep = 100 * time.Millisecond
	}
	if cfg.Sweep.Period == 0 {
		cfg.Sweep.Period = time.Minute
	}
	if cfg.Sweep.PageSize == 0 {
		cfg.Sweep.PageSize = 100
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
}

func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Checkout.DeadlockBackoffMin > c.Checkout.DeadlockBackoffMax {
		return fmt.Errorf("checkout.deadlock_backoff_min (%s) cannot exceed checkout.deadlock_backoff_max (%s)",
			c.Checkout.DeadlockBackoffMin, c.Checkout.DeadlockBackoffMax)
	}
	if c.Checkout.MaxHoldQuantity < 1 {
		return fmt.Errorf("checkout.max_hold_quantity must be positive")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port address for the Redis client
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
