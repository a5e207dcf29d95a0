package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Auth      AuthConfig      `yaml:"auth"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Seed      SeedConfig      `yaml:"seed"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// AuthConfig holds worker token issuing configuration
type AuthConfig struct {
	SecretKey string        `yaml:"secret_key"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DispatchConfig holds job lifecycle policy knobs
type DispatchConfig struct {
	PendingTTL    time.Duration `yaml:"pending_ttl"`
	ProcessingTTL time.Duration `yaml:"processing_ttl"`
	MaxRetries    int           `yaml:"max_retries"`
}

// SchedulerConfig holds sweeper service configuration
type SchedulerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	LowWaterMark    int           `yaml:"low_water_mark"`
	ReplenishCount  int           `yaml:"replenish_count"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SeedConfig holds the one-shot seeder configuration
type SeedConfig struct {
	BarcodeCount int `yaml:"barcode_count"`
}

// Load reads and parses the configuration file. AUTH_SECRET_KEY, DB_PASSWORD
// and RABBITMQ_PASSWORD environment variables override their file values so
// secrets can stay out of the checked-in configs.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if v := os.Getenv("AUTH_SECRET_KEY"); v != "" {
		config.Auth.SecretKey = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("RABBITMQ_PASSWORD"); v != "" {
		config.RabbitMQ.Password = v
	}

	return &config, nil
}

// validateCore checks the sections every service depends on
func (c *Config) validateCore() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.Dispatch.PendingTTL <= 0 {
		return fmt.Errorf("dispatch pending_ttl must be greater than 0")
	}

	if c.Dispatch.ProcessingTTL <= 0 {
		return fmt.Errorf("dispatch processing_ttl must be greater than 0")
	}

	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch max_retries must not be negative")
	}

	return nil
}

// ValidateAPIConfig checks the configuration needed by the API service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth secret_key is required")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token_ttl must be greater than 0")
	}

	return c.validateCore()
}

// ValidateSchedulerConfig checks the configuration needed by the scheduler
// service
func (c *Config) ValidateSchedulerConfig() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	if c.Scheduler.LowWaterMark < 0 {
		return fmt.Errorf("scheduler low_water_mark must not be negative")
	}

	if c.Scheduler.ReplenishCount < 0 {
		return fmt.Errorf("scheduler replenish_count must not be negative")
	}

	return c.validateCore()
}
