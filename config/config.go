package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr string

	DBDriver   string // "mysql" or "sqlite"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Redis is optional; without it revoked tokens are kept in memory.
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	StorageDriver  string // "minio" or "memory"
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool
	PublicBaseURL  string // prefix of every public object URL

	JWTSecret   string
	JWTTTLHours int
	MaxUploadMB int

	LogLevel string
	LogFile  string

	OAuthProviders map[string]OAuthProvider
}

// OAuthProvider holds the client settings of one OAuth sign-in provider.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DBDriver:       getEnv("DB_DRIVER", "mysql"),
		DBHost:         getEnv("DB_HOST", "127.0.0.1"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "root"),
		DBPassword:     os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:         getEnv("DB_NAME", "metawave"),
		SQLitePath:     getEnv("SQLITE_PATH", "metawave.db"),
		RedisEnabled:   getEnvBool("REDIS_ENABLED", true),
		RedisHost:      getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		StorageDriver:  getEnv("STORAGE_DRIVER", "minio"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "metawave"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:8080/static"), "/"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTLHours:    getEnvInt("JWT_TTL_HOURS", 24*7),
		MaxUploadMB:    getEnvInt("MAX_UPLOAD_MB", 50),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		OAuthProviders: loadOAuthProviders(),
	}
	return cfg
}

// loadOAuthProviders reads OAUTH_PROVIDERS=github,google and the
// OAUTH_<NAME>_* variables of every listed provider.
func loadOAuthProviders() map[string]OAuthProvider {
	providers := make(map[string]OAuthProvider)
	for _, name := range strings.Split(getEnv("OAUTH_PROVIDERS", ""), ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		prefix := "OAUTH_" + strings.ToUpper(name) + "_"
		var scopes []string
		for _, s := range strings.Split(getEnv(prefix+"SCOPES", "openid,email,profile"), ",") {
			if s = strings.TrimSpace(s); s != "" {
				scopes = append(scopes, s)
			}
		}
		providers[name] = OAuthProvider{
			ClientID:     os.Getenv(prefix + "CLIENT_ID"),
			ClientSecret: os.Getenv(prefix + "CLIENT_SECRET"),
			AuthURL:      os.Getenv(prefix + "AUTH_URL"),
			TokenURL:     os.Getenv(prefix + "TOKEN_URL"),
			UserInfoURL:  os.Getenv(prefix + "USERINFO_URL"),
			RedirectURL:  os.Getenv(prefix + "REDIRECT_URL"),
			Scopes:       scopes,
		}
	}
	return providers
}
