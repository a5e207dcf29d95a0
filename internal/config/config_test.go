package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "dispatch_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host: "localhost",
			Port: 5672,
			Exchange: ExchangeConfig{
				Name: "dispatch_events",
			},
		},
		Auth: AuthConfig{
			SecretKey: "local-dev-secret",
			TokenTTL:  time.Hour,
		},
		Dispatch: DispatchConfig{
			PendingTTL:    2 * time.Hour,
			ProcessingTTL: time.Hour,
			MaxRetries:    3,
		},
		Scheduler: SchedulerConfig{
			Interval:       30 * time.Second,
			LowWaterMark:   100,
			ReplenishCount: 1000,
		},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "dispatch_db", cfg.Database.Database)
				assert.Equal(t, "dispatch_events", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "rpa-dispatch-api", cfg.App.Name)
				assert.Equal(t, 2*time.Hour, cfg.Dispatch.PendingTTL)
				assert.Equal(t, time.Hour, cfg.Dispatch.ProcessingTTL)
				assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
				assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
				assert.Equal(t, 1000, cfg.Seed.BarcodeCount)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AUTH_SECRET_KEY", "from-env")
	t.Setenv("DB_PASSWORD", "db-from-env")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
	assert.Equal(t, "db-from-env", cfg.Database.Password)
	// Unset env vars leave file values alone.
	assert.Equal(t, "guest", cfg.RabbitMQ.Password)
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "empty auth secret",
			mutate:    func(c *Config) { c.Auth.SecretKey = "" },
			wantErr:   true,
			errString: "auth secret_key is required",
		},
		{
			name:      "zero token ttl",
			mutate:    func(c *Config) { c.Auth.TokenTTL = 0 },
			wantErr:   true,
			errString: "auth token_ttl must be greater than 0",
		},
		{
			name:      "zero pending ttl",
			mutate:    func(c *Config) { c.Dispatch.PendingTTL = 0 },
			wantErr:   true,
			errString: "dispatch pending_ttl must be greater than 0",
		},
		{
			name:      "zero processing ttl",
			mutate:    func(c *Config) { c.Dispatch.ProcessingTTL = 0 },
			wantErr:   true,
			errString: "dispatch processing_ttl must be greater than 0",
		},
		{
			name:      "negative max retries",
			mutate:    func(c *Config) { c.Dispatch.MaxRetries = -1 },
			wantErr:   true,
			errString: "dispatch max_retries must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateSchedulerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantErr   bool
		errString string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:      "zero interval",
			mutate:    func(c *Config) { c.Scheduler.Interval = 0 },
			wantErr:   true,
			errString: "scheduler interval must be greater than 0",
		},
		{
			name:      "negative low water mark",
			mutate:    func(c *Config) { c.Scheduler.LowWaterMark = -1 },
			wantErr:   true,
			errString: "scheduler low_water_mark must not be negative",
		},
		{
			name:      "negative replenish count",
			mutate:    func(c *Config) { c.Scheduler.ReplenishCount = -1 },
			wantErr:   true,
			errString: "scheduler replenish_count must not be negative",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateSchedulerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateSchedulerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
