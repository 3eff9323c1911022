// Package config provides environment-driven configuration for the messaging engine
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the service
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Cache    CacheConfig
	Gateway  GatewayConfig
	Engine   EngineConfig
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Address returns the host:port listen address
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheConfig holds Redis settings for quota counters and progress pub/sub
type CacheConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the redis host:port address
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GatewayConfig holds the WhatsApp session bridge settings
type GatewayConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// EngineConfig holds the delivery loop tunables
type EngineConfig struct {
	TickInterval       time.Duration
	BatchLimit         int
	SendTimeout        time.Duration
	FollowUpDelay      time.Duration
	InstantMinDelay    time.Duration
	InstantMaxDelay    time.Duration
	DefaultHourlyLimit int
	DefaultDailyLimit  int
	WarmUpFactor       float64
	VaryMessages       bool
	BranchNames        map[int64]string
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "messaging_engine"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gateway: GatewayConfig{
			BaseURL: getEnvString("GATEWAY_BASE_URL", "http://localhost:3000"),
			APIKey:  getEnvString("GATEWAY_API_KEY", ""),
			Timeout: getEnvDuration("GATEWAY_TIMEOUT", 60*time.Second),
		},
		Engine: EngineConfig{
			TickInterval:       getEnvDuration("ENGINE_TICK_INTERVAL", 30*time.Second),
			BatchLimit:         getEnvInt("ENGINE_BATCH_LIMIT", 100),
			SendTimeout:        getEnvDuration("ENGINE_SEND_TIMEOUT", 90*time.Second),
			FollowUpDelay:      getEnvDuration("ENGINE_FOLLOWUP_DELAY", 2*time.Second),
			InstantMinDelay:    getEnvDuration("ENGINE_INSTANT_MIN_DELAY", 5*time.Second),
			InstantMaxDelay:    getEnvDuration("ENGINE_INSTANT_MAX_DELAY", 15*time.Second),
			DefaultHourlyLimit: getEnvInt("ENGINE_DEFAULT_HOURLY_LIMIT", 40),
			DefaultDailyLimit:  getEnvInt("ENGINE_DEFAULT_DAILY_LIMIT", 300),
			WarmUpFactor:       getEnvFloat("ENGINE_WARMUP_FACTOR", 0.5),
			VaryMessages:       getEnvBool("ENGINE_VARY_MESSAGES", true),
			BranchNames:        getEnvBranchNames("ENGINE_BRANCH_NAMES"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME must not be empty")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("GATEWAY_BASE_URL must not be empty")
	}
	if c.Engine.WarmUpFactor <= 0 || c.Engine.WarmUpFactor > 1 {
		return fmt.Errorf("ENGINE_WARMUP_FACTOR must be in (0, 1]")
	}
	if c.Engine.InstantMaxDelay < c.Engine.InstantMinDelay {
		return fmt.Errorf("ENGINE_INSTANT_MAX_DELAY must not be below ENGINE_INSTANT_MIN_DELAY")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBranchNames parses "1=Downtown,2=Airport" style mappings
func getEnvBranchNames(key string) map[int64]string {
	names := make(map[int64]string)
	value := os.Getenv(key)
	if value == "" {
		return names
	}
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		names[id] = parts[1]
	}
	return names
}
