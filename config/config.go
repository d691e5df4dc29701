package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/answer-detector/services/classifier"
	"github.com/upb/answer-detector/services/resolver"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Classifiers   ClassifiersConfig
	Resolver      ResolverConfig
	Observability ObservabilityConfig
	Questions     []string // used when a caller supplies no question
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ClassifiersConfig holds the backend chain in priority order
type ClassifiersConfig struct {
	ChainFile string // optional YAML file that replaces the default chain
	Seed      uint64 // random seed for simulated backends, 0 = random
	Chain     []classifier.SimulatedConfig
}

// ResolverConfig holds fallback resolution settings
type ResolverConfig struct {
	AttemptTimeout time.Duration
	MaxConcurrency int
	MaxBatchSize   int
	BatchMode      resolver.BatchMode
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// DefaultQuestions returns the questions resolved when none is supplied
func DefaultQuestions() []string {
	return []string{
		"Tell me about yourself",
		"Why this company?",
		"Greatest weakness?",
		"Describe a challenge you solved",
		"Where do you see yourself in 5 years?",
	}
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Classifiers: ClassifiersConfig{
			ChainFile: getEnv("CLASSIFIER_CHAIN_FILE", ""),
			Seed:      getEnvAsUint64("CLASSIFIER_SEED", 0),
			Chain:     classifier.DefaultChainConfigs(),
		},
		Resolver: ResolverConfig{
			AttemptTimeout: getEnvAsDuration("RESOLVER_ATTEMPT_TIMEOUT", 0),
			MaxConcurrency: getEnvAsInt("RESOLVER_MAX_CONCURRENCY", 0),
			MaxBatchSize:   getEnvAsInt("RESOLVER_MAX_BATCH_SIZE", 20),
			BatchMode:      resolver.BatchMode(getEnv("RESOLVER_BATCH_MODE", string(resolver.BatchAllOrNothing))),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Questions: getEnvAsList("DEFAULT_QUESTIONS", "|", DefaultQuestions()),
	}

	if cfg.Classifiers.ChainFile != "" {
		chain, err := LoadChainFile(cfg.Classifiers.ChainFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load classifier chain: %w", err)
		}
		cfg.Classifiers.Chain = chain
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	if len(c.Classifiers.Chain) == 0 {
		return fmt.Errorf("at least one classifier backend is required")
	}
	seen := make(map[string]bool, len(c.Classifiers.Chain))
	for _, backend := range c.Classifiers.Chain {
		if err := backend.Validate(); err != nil {
			return err
		}
		if seen[backend.Name] {
			return fmt.Errorf("duplicate classifier backend %s", backend.Name)
		}
		seen[backend.Name] = true
	}

	if c.Resolver.AttemptTimeout < 0 {
		return fmt.Errorf("resolver attempt timeout cannot be negative")
	}
	if c.Resolver.MaxConcurrency < 0 {
		return fmt.Errorf("resolver max concurrency cannot be negative")
	}
	if c.Resolver.MaxBatchSize <= 0 {
		return fmt.Errorf("resolver max batch size must be positive")
	}
	if !c.Resolver.BatchMode.Valid() {
		return fmt.Errorf("unknown batch mode %q", c.Resolver.BatchMode)
	}

	if len(c.Questions) == 0 {
		return fmt.Errorf("at least one default question is required")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 3000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key, sep string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, sep) {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
