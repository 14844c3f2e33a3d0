// Package config loads application configuration from file and environment
// via viper.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Search configuration
	Search SearchConfig `mapstructure:"search"`

	// VectorStore configuration
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`

	// GraphStore configuration
	GraphStore GraphStoreConfig `mapstructure:"graph_store"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider         string `mapstructure:"provider"` // openai, local
	Model            string `mapstructure:"model"`
	APIKey           string `mapstructure:"api_key"`
	BaseURL          string `mapstructure:"base_url"`
	TargetDimensions int    `mapstructure:"target_dimensions"`
	MaxRetries       int    `mapstructure:"max_retries"`
	CacheSize        int    `mapstructure:"cache_size"`
	CacheMemoryMB    int    `mapstructure:"cache_memory_mb"`
	CacheTTLHours    int    `mapstructure:"cache_ttl_hours"`
}

// SearchConfig holds retrieval pipeline configuration
type SearchConfig struct {
	Alpha            float64 `mapstructure:"alpha"`
	Beta             float64 `mapstructure:"beta"`
	Limit            int     `mapstructure:"limit"`
	Mode             string  `mapstructure:"mode"` // dense, lexical, hybrid
	RerankEnabled    bool    `mapstructure:"rerank_enabled"`
	RerankMaxTokens  int     `mapstructure:"rerank_max_tokens"`
	QABoost          float64 `mapstructure:"qa_boost"`
	BackendTimeoutMS int     `mapstructure:"backend_timeout_ms"`
}

// VectorStoreConfig holds vector store configuration
type VectorStoreConfig struct {
	Driver string `mapstructure:"driver"` // badger, memory
	Path   string `mapstructure:"path"`
}

// GraphStoreConfig holds graph store configuration
type GraphStoreConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.target_dimensions", 1536)
	viper.SetDefault("embedding.max_retries", 3)
	viper.SetDefault("embedding.cache_size", 10000)
	viper.SetDefault("embedding.cache_memory_mb", 256)
	viper.SetDefault("embedding.cache_ttl_hours", 24)

	// Search defaults
	viper.SetDefault("search.alpha", 0.7)
	viper.SetDefault("search.beta", 0.3)
	viper.SetDefault("search.limit", 10)
	viper.SetDefault("search.mode", "hybrid")
	viper.SetDefault("search.rerank_enabled", true)
	viper.SetDefault("search.rerank_max_tokens", 512)
	viper.SetDefault("search.qa_boost", 2.0)
	viper.SetDefault("search.backend_timeout_ms", 5000)

	// Store defaults
	viper.SetDefault("vector_store.driver", "badger")
	viper.SetDefault("vector_store.path", "./recall_db")
	viper.SetDefault("graph_store.enabled", false)
	viper.SetDefault("graph_store.uri", "bolt://localhost:7687")
	viper.SetDefault("graph_store.database", "neo4j")

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 5)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		defaultPath := fmt.Sprintf("%s/.recall/telemetry", home)
		viper.SetDefault("telemetry.parquet_path", defaultPath)
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Embedding.APIKey = apiKey
	}

	// Graph store credentials
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.GraphStore.URI = uri
		config.GraphStore.Enabled = true
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.GraphStore.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.GraphStore.Password = pass
	}

	// Vector store path
	if dbPath := os.Getenv("RECALL_DB_PATH"); dbPath != "" {
		config.VectorStore.Path = dbPath
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
