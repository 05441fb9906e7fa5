package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	Server    ServerConfig
	API       APIConfig
	Push      PushConfig
	Selection SelectionConfig
	Redis     RedisConfig
	Log       LogConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// SessionCookie is forwarded on every REST and push request. The
	// identity provider issues it; this service never mints one.
	SessionCookie string
	// RevertTimeout bounds the corrective re-fetch after a failed command.
	RevertTimeout time.Duration
}

type PushConfig struct {
	StreamURL   string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

type SelectionConfig struct {
	DepartmentID    string
	DoctorID        string
	RefreshInterval time.Duration // 0 disables periodic snapshot refresh
	RetryAttempts   int
	RetryDelay      time.Duration
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

type KafkaConfig struct {
	Brokers              []string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	Enabled              bool
}

// TelemetryConfig enables OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	ServiceName  string
	OTLPEndpoint string
	Insecure     bool
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8090),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50057),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080/api"),
			RequestTimeout: getEnvAsDuration("API_REQUEST_TIMEOUT", 10*time.Second),
			SessionCookie:  getEnv("API_SESSION_COOKIE", ""),
			RevertTimeout:  getEnvAsDuration("API_REVERT_TIMEOUT", 10*time.Second),
		},
		Push: PushConfig{
			StreamURL:   getEnv("PUSH_STREAM_URL", "http://localhost:8080/api/queue/stream"),
			MaxAttempts: getEnvAsInt("PUSH_MAX_ATTEMPTS", 5),
			BaseDelay:   getEnvAsDuration("PUSH_BASE_DELAY", 1*time.Second),
			MaxDelay:    getEnvAsDuration("PUSH_MAX_DELAY", 10*time.Second),
			MaxJitter:   getEnvAsDuration("PUSH_MAX_JITTER", 1*time.Second),
		},
		Selection: SelectionConfig{
			DepartmentID:    getEnv("SELECTION_DEPARTMENT_ID", "all"),
			DoctorID:        getEnv("SELECTION_DOCTOR_ID", ""),
			RefreshInterval: getEnvAsDuration("SELECTION_REFRESH_INTERVAL", 30*time.Second),
			RetryAttempts:   getEnvAsInt("SELECTION_RETRY_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("SELECTION_RETRY_DELAY", time.Second),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
		},
	}

	cfg.Telemetry = TelemetryConfig{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "clinicqueue-sync"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Insecure:     getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
		return fmt.Errorf("invalid api base url %q: %w", c.API.BaseURL, err)
	}

	if _, err := url.ParseRequestURI(c.Push.StreamURL); err != nil {
		return fmt.Errorf("invalid push stream url %q: %w", c.Push.StreamURL, err)
	}

	if c.Push.MaxAttempts <= 0 {
		return fmt.Errorf("push max attempts must be positive, got %d", c.Push.MaxAttempts)
	}

	if c.Push.BaseDelay <= 0 || c.Push.MaxDelay < c.Push.BaseDelay {
		return fmt.Errorf("invalid push backoff: base=%s max=%s", c.Push.BaseDelay, c.Push.MaxDelay)
	}

	if c.Selection.RefreshInterval < 0 {
		return fmt.Errorf("selection refresh interval must not be negative, got %s", c.Selection.RefreshInterval)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	// Split by comma
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
