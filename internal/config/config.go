package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NLP      NLPConfig
	R2       R2Config
	Storage  StorageConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AuthConfig struct {
	Disabled      bool
	Auth0Domain   string
	Audience      string
	IssuerBaseURL string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	PoolMax        int
	RetryAttempts  int
	RetryBackoff   time.Duration
}

type RedisConfig struct {
	URL string
}

type NLPConfig struct {
	BaseURL string
	Timeout time.Duration
}

type R2Config struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	Endpoint  string
}

type StorageConfig struct {
	MaxFileSize int64
}

type WorkerConfig struct {
	ParseResumeConcurrency int
	ParseJobConcurrency    int
	MatchConcurrency       int
	MaxRetries             int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "4000"),
			Env:  getEnv("ENV", "development"),
		},
		Auth: AuthConfig{
			Disabled:      getEnvAsBool("AUTH_DISABLED", false),
			Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
			Audience:      getEnv("AUTH0_AUDIENCE", ""),
			IssuerBaseURL: getEnv("AUTH0_ISSUER_BASE_URL", ""),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "talentmatch"),
			ConnectTimeout: getEnvAsMillis("SQL_CONNECT_TIMEOUT_MS", 30000),
			RequestTimeout: getEnvAsMillis("SQL_REQUEST_TIMEOUT_MS", 60000),
			PoolMax:        getEnvAsInt("SQL_POOL_MAX", 10),
			RetryAttempts:  getEnvAsInt("SQL_RETRY_ATTEMPTS", 5),
			RetryBackoff:   getEnvAsMillis("SQL_RETRY_BACKOFF_MS", 3000),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		NLP: NLPConfig{
			BaseURL: getEnv("PYTHON_SERVICE_URL", "http://localhost:8000"),
			Timeout: getEnvAsMillis("PYTHON_SERVICE_TIMEOUT_MS", 120000),
		},
		R2: R2Config{
			AccountID: getEnv("R2_ACCOUNT_ID", ""),
			AccessKey: getEnv("R2_ACCESS_KEY_ID", ""),
			SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:    getEnv("R2_BUCKET", "talentmatch"),
			Endpoint:  getEnv("R2_ENDPOINT", ""),
		},
		Storage: StorageConfig{
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Worker: WorkerConfig{
			ParseResumeConcurrency: getEnvAsInt("PARSE_RESUME_CONCURRENCY", 1),
			ParseJobConcurrency:    getEnvAsInt("PARSE_JOB_CONCURRENCY", 1),
			MatchConcurrency:       getEnvAsInt("MATCH_CONCURRENCY", 2),
			MaxRetries:             getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable connect_timeout=%d",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		int(c.Database.ConnectTimeout.Seconds()),
	)
}

// Issuer returns the expected iss claim for bearer tokens. The explicit
// issuer URL wins over the bare Auth0 domain.
func (a AuthConfig) Issuer() string {
	if a.IssuerBaseURL != "" {
		return a.IssuerBaseURL
	}
	if a.Auth0Domain != "" {
		return fmt.Sprintf("https://%s/", a.Auth0Domain)
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int64) time.Duration {
	return time.Duration(getEnvAsInt64(key, defaultValue)) * time.Millisecond
}
