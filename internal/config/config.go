package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Data backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	Timezone        string

	// Data
	DataBackend         string
	DatabaseURL         string
	DBMaxConnections    int
	DBConnectionTimeout time.Duration
	MemorySeedFile      string
	MutationMaxRetries  int

	// Clerk Auth
	ClerkPublishableKey string
	ClerkSecretKey      string

	// Ledger events, disabled when AMQPURL is empty
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string

	LogLevel       string
	RequestLogging bool
}

// LoadFromEnv reads the configuration from the environment and validates it
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		Environment:         getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		Timezone:            getEnv("TIMEZONE", "UTC"),
		DataBackend:         getEnv("DATA_BACKEND", BackendPostgres),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBMaxConnections:    getEnvInt("DB_MAX_CONNECTIONS", 25),
		DBConnectionTimeout: getEnvDuration("DB_CONNECTION_TIMEOUT", 30*time.Second),
		MemorySeedFile:      getEnv("MEMORY_SEED_FILE", ""),
		MutationMaxRetries:  getEnvInt("MUTATION_MAX_RETRIES", 3),
		ClerkPublishableKey: getEnv("CLERK_PUBLISHABLE_KEY", ""),
		ClerkSecretKey:      getEnv("CLERK_SECRET_KEY", ""),
		AMQPURL:             getEnv("AMQP_URL", ""),
		AMQPExchange:        getEnv("AMQP_EXCHANGE", "finlens.ledger"),
		AMQPRoutingKey:      getEnv("AMQP_ROUTING_KEY", "finlens"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		RequestLogging:      getEnvBool("REQUEST_LOGGING", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}

	backends := []string{BackendPostgres, BackendMemory}
	if !slices.Contains(backends, c.DataBackend) {
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, backends))
	}
	if c.DataBackend == BackendPostgres && c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required when using the postgres backend")
	}
	if c.DataBackend == BackendMemory && c.Environment == "production" {
		problems = append(problems, "the memory backend cannot be used in production")
	}
	if c.DBMaxConnections < 1 {
		problems = append(problems, fmt.Sprintf("invalid DB_MAX_CONNECTIONS %d: must be at least 1", c.DBMaxConnections))
	}
	if c.MutationMaxRetries < 1 || c.MutationMaxRetries > 10 {
		problems = append(problems, fmt.Sprintf("invalid MUTATION_MAX_RETRIES %d: must be between 1 and 10", c.MutationMaxRetries))
	}

	if c.ClerkSecretKey == "" && c.Environment == "production" {
		problems = append(problems, "CLERK_SECRET_KEY is required in production")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid TIMEZONE '%s': %v", c.Timezone, err))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
