package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config is the full application configuration, assembled from the
// environment (optionally seeded by a .env file loaded in main).
type Config struct {
	App       AppConfig
	Server    ServerConfig
	MongoDB   MongoConfig
	JWT       JWTConfig
	Chat      ChatConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Port        string
	Debug       bool
}

type ServerConfig struct {
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI             string
	Database        string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	ExpiryHour int
}

type ChatConfig struct {
	MaxMessageLength int
	JoinGracePeriod  time.Duration
	HistoryPageSize  int64
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
	SendBufferSize  int
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

var (
	cfg  *Config
	once sync.Once
)

// Load returns the process-wide configuration, reading the environment on
// first use.
func Load() *Config {
	once.Do(func() {
		cfg = &Config{
			App: AppConfig{
				Name:        getEnv("APP_NAME", "solarchat"),
				Version:     getEnv("APP_VERSION", "1.0.0"),
				Environment: getEnv("APP_ENV", "development"),
				Port:        getEnv("PORT", "5000"),
				Debug:       getEnvBool("APP_DEBUG", false),
			},
			Server: ServerConfig{
				Host:         getEnv("SERVER_HOST", "0.0.0.0"),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			},
			MongoDB: MongoConfig{
				URI:             getEnv("MONGODB_URI", "mongodb://localhost:27017"),
				Database:        getEnv("MONGODB_DATABASE", "solarchat"),
				MaxPoolSize:     uint64(getEnvInt("MONGODB_MAX_POOL_SIZE", 100)),
				MinPoolSize:     uint64(getEnvInt("MONGODB_MIN_POOL_SIZE", 5)),
				MaxConnIdleTime: getEnvDuration("MONGODB_MAX_CONN_IDLE", 30*time.Minute),
				ConnectTimeout:  getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
				QueryTimeout:    getEnvDuration("MONGODB_QUERY_TIMEOUT", 5*time.Second),
			},
			JWT: JWTConfig{
				Secret:     getEnv("JWT_SECRET", "change-me-in-production"),
				Issuer:     getEnv("JWT_ISSUER", "solarchat-backend"),
				ExpiryHour: getEnvInt("JWT_EXPIRY_HOURS", 24),
			},
			Chat: ChatConfig{
				MaxMessageLength: getEnvInt("CHAT_MAX_MESSAGE_LENGTH", 1000),
				JoinGracePeriod:  getEnvDuration("CHAT_JOIN_GRACE_PERIOD", 30*time.Second),
				HistoryPageSize:  int64(getEnvInt("CHAT_HISTORY_PAGE_SIZE", 50)),
			},
			WebSocket: WebSocketConfig{
				ReadBufferSize:  getEnvInt("WS_READ_BUFFER_SIZE", 1024),
				WriteBufferSize: getEnvInt("WS_WRITE_BUFFER_SIZE", 1024),
				PongWait:        getEnvDuration("WS_PONG_WAIT", 60*time.Second),
				WriteWait:       getEnvDuration("WS_WRITE_WAIT", 10*time.Second),
				MaxMessageSize:  int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
				SendBufferSize:  getEnvInt("WS_SEND_BUFFER_SIZE", 256),
			},
			CORS: CORSConfig{
				AllowedOrigins:   getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
				AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			},
		}
	})
	return cfg
}

// Environment helpers

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
