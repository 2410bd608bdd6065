package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Checkout    CheckoutConfig    `mapstructure:"checkout"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Outbox      OutboxConfig      `mapstructure:"outbox"`
	Lifecycle   LifecycleConfig   `mapstructure:"lifecycle"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Cache       CacheConfig       `mapstructure:"cache"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN builds the MySQL connection string.
func (c DatabaseConfig) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.DBName, charset)
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// JWTConfig represents token issuing configuration
type JWTConfig struct {
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	AccessExpire  time.Duration `mapstructure:"access_expire"`
	RefreshExpire time.Duration `mapstructure:"refresh_expire"`
}

// CheckoutConfig governs stock reservation and order placement
type CheckoutConfig struct {
	ReservationTTL    time.Duration `mapstructure:"reservation_ttl"`
	MinOrderAmount    int64         `mapstructure:"min_order_amount"` // cents
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize    int           `mapstructure:"sweep_batch_size"`
	EstimatedDelivery time.Duration `mapstructure:"estimated_delivery"`
}

// IdempotencyConfig governs the request deduplication layer
type IdempotencyConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// OutboxConfig governs the event dispatcher
type OutboxConfig struct {
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	MaxRetries       int           `mapstructure:"max_retries"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	Retention        time.Duration `mapstructure:"retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// LifecycleConfig governs order timeouts and SLA budgets
type LifecycleConfig struct {
	UnpaidCancelAfter  time.Duration `mapstructure:"unpaid_cancel_after"`
	AutoCancelInterval time.Duration `mapstructure:"auto_cancel_interval"`
	ConfirmedToPacked  time.Duration `mapstructure:"confirmed_to_packed"`
	PackedToDispatched time.Duration `mapstructure:"packed_to_dispatched"`
	SLACheckInterval   time.Duration `mapstructure:"sla_check_interval"`
	BatchSize          int           `mapstructure:"batch_size"`
}

// PaymentConfig holds webhook secrets keyed by provider name
type PaymentConfig struct {
	WebhookSecrets map[string]string `mapstructure:"webhook_secrets"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// CacheConfig governs the in-process cache of completed idempotent
// responses. The database record stays authoritative; the cache only
// short-circuits hot replays.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Defaults fills zero values with the documented defaults.
func (c *Config) Defaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.JWT.AccessExpire == 0 {
		c.JWT.AccessExpire = 15 * time.Minute
	}
	if c.JWT.RefreshExpire == 0 {
		c.JWT.RefreshExpire = 7 * 24 * time.Hour
	}
	if c.Checkout.ReservationTTL == 0 {
		c.Checkout.ReservationTTL = 15 * time.Minute
	}
	if c.Checkout.SweepInterval == 0 {
		c.Checkout.SweepInterval = time.Minute
	}
	if c.Checkout.SweepBatchSize == 0 {
		c.Checkout.SweepBatchSize = 100
	}
	if c.Checkout.EstimatedDelivery == 0 {
		c.Checkout.EstimatedDelivery = 30 * time.Minute
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = 24 * time.Hour
	}
	if c.Idempotency.CleanupInterval == 0 {
		c.Idempotency.CleanupInterval = time.Hour
	}
	if c.Outbox.DispatchInterval == 0 {
		c.Outbox.DispatchInterval = 10 * time.Second
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 20
	}
	if c.Outbox.MaxRetries == 0 {
		c.Outbox.MaxRetries = 5
	}
	if c.Outbox.LockTTL == 0 {
		c.Outbox.LockTTL = 30 * time.Second
	}
	if c.Outbox.Retention == 0 {
		c.Outbox.Retention = 7 * 24 * time.Hour
	}
	if c.Outbox.CleanupInterval == 0 {
		c.Outbox.CleanupInterval = 24 * time.Hour
	}
	if c.Lifecycle.UnpaidCancelAfter == 0 {
		c.Lifecycle.UnpaidCancelAfter = 30 * time.Minute
	}
	if c.Lifecycle.AutoCancelInterval == 0 {
		c.Lifecycle.AutoCancelInterval = 2 * time.Minute
	}
	if c.Lifecycle.ConfirmedToPacked == 0 {
		c.Lifecycle.ConfirmedToPacked = 10 * time.Minute
	}
	if c.Lifecycle.PackedToDispatched == 0 {
		c.Lifecycle.PackedToDispatched = 5 * time.Minute
	}
	if c.Lifecycle.SLACheckInterval == 0 {
		c.Lifecycle.SLACheckInterval = 5 * time.Minute
	}
	if c.Lifecycle.BatchSize == 0 {
		c.Lifecycle.BatchSize = 50
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.Host == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host and dbname are required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	return nil
}
