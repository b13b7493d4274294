package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration (change feed transport)
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Upload limits and attachment handling
	Upload struct {
		MaxAttachmentsPerMessage int
		MaxFilenameLength        int
		ImageMaxBytes            int64
		VideoMaxBytes            int64
		AudioMaxBytes            int64
		DocumentMaxBytes         int64
		ArchiveMaxBytes          int64
		CodeMaxBytes             int64
		OtherMaxBytes            int64
		ProbeTimeout             time.Duration
	}

	// Providers holds external service endpoints
	Providers struct {
		ImageHostURL        string
		ImageHostAPIKey     string
		ImageHostExpiration string
		AvatarServiceURL    string
		FileBaseURL         string
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8081")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "chat-messaging")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)

		// Upload config
		instance.Upload.MaxAttachmentsPerMessage = getEnvInt("MAX_ATTACHMENTS_PER_MESSAGE", 10)
		instance.Upload.MaxFilenameLength = getEnvInt("MAX_FILENAME_LENGTH", 255)
		instance.Upload.ImageMaxBytes = getEnvInt64("UPLOAD_IMAGE_MAX_BYTES", 5<<20)
		instance.Upload.VideoMaxBytes = getEnvInt64("UPLOAD_VIDEO_MAX_BYTES", 50<<20)
		instance.Upload.AudioMaxBytes = getEnvInt64("UPLOAD_AUDIO_MAX_BYTES", 20<<20)
		instance.Upload.DocumentMaxBytes = getEnvInt64("UPLOAD_DOCUMENT_MAX_BYTES", 10<<20)
		instance.Upload.ArchiveMaxBytes = getEnvInt64("UPLOAD_ARCHIVE_MAX_BYTES", 25<<20)
		instance.Upload.CodeMaxBytes = getEnvInt64("UPLOAD_CODE_MAX_BYTES", 5<<20)
		instance.Upload.OtherMaxBytes = getEnvInt64("UPLOAD_OTHER_MAX_BYTES", 15<<20)
		instance.Upload.ProbeTimeout = getEnvDuration("UPLOAD_PROBE_TIMEOUT", 10*time.Second)

		// Provider endpoints
		instance.Providers.ImageHostURL = getEnvString("IMAGE_HOST_URL", "https://api.imgbb.com/1/upload")
		instance.Providers.ImageHostAPIKey = getEnvString("IMAGE_HOST_API_KEY", "")
		instance.Providers.ImageHostExpiration = getEnvString("IMAGE_HOST_EXPIRATION", "0")
		instance.Providers.AvatarServiceURL = getEnvString("AVATAR_SERVICE_URL", "https://ui-avatars.com/api/")
		instance.Providers.FileBaseURL = getEnvString("FILE_BASE_URL", instance.Server.BaseURL+"/files")

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
		instance.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 60<<20)

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
