package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Oracle    OracleConfig
	LLM       LLMConfig
	Interview InterviewConfig
	Catalog   CatalogConfig
	Wearable  WearableConfig
	RateLimit RateLimitConfig
	LogLevel  string
}

type ServerConfig struct {
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// MaxConns caps the session store pool
	MaxConns int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// StoreConfig selects where interview sessions live between turns.
type StoreConfig struct {
	// Driver: "memory", "postgres" or "sqlite"
	Driver string
	// SQLitePath is the database file used by the sqlite driver
	SQLitePath string
}

// KurrentDBConfig holds configuration for the interview event stream.
type KurrentDBConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

// ConnectionString returns the esdb:// connection string for the EventStore client.
func (c KurrentDBConfig) ConnectionString() string {
	var auth string
	if c.Username != "" && c.Password != "" {
		auth = fmt.Sprintf("%s:%s@", c.Username, c.Password)
	}

	var tls string
	if c.Insecure {
		tls = "?tls=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, c.Host, c.Port, tls)
}

type AuthConfig struct {
	// Enabled requires a bearer token on the API. When disabled the user id
	// is taken from the request body, as in local development.
	Enabled   bool
	JWTSecret string
}

// OracleConfig points at the diagnostic-reasoning service.
type OracleConfig struct {
	URL     string
	AppID   string
	AppKey  string
	Timeout time.Duration
}

type LLMConfig struct {
	// Provider: "openai" or "gemini"
	Provider    string
	OpenAIKey   string
	OpenAIModel string
	GeminiKey   string
	GeminiModel string
	Timeout     time.Duration
}

// InterviewConfig holds the stop/format policy knobs.
type InterviewConfig struct {
	MinQuestions             int
	MaxQuestions             int
	ProbabilityThreshold     float64
	ProbabilityDiffThreshold float64
	MinAge                   int
}

// CatalogConfig locates the cached symptom-name table.
type CatalogConfig struct {
	CacheFile   string
	CacheExpiry time.Duration
}

type WearableConfig struct {
	// Provider: "none", "fitbit" or "devicehub"
	Provider string

	FitbitAPIURL       string
	FitbitTokenURL     string
	FitbitClientID     string
	FitbitClientSecret string

	DeviceHubHost     string
	DeviceHubPort     int
	DeviceHubDatabase string
	DeviceHubUser     string
	DeviceHubPassword string
	DeviceHubTable    string
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 8080),
			Env:            getEnv("ENV", "development"),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "triage"),
			Password: getEnv("DB_PASSWORD", "triage"),
			Database: getEnv("DB_NAME", "triage"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Store: StoreConfig{
			Driver:     getEnv("SESSION_STORE", "memory"),
			SQLitePath: getEnv("SQLITE_PATH", "triage.db"),
		},
		KurrentDB: KurrentDBConfig{
			Enabled:  getEnvBool("EVENTS_ENABLED", false),
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			Enabled:   getEnvBool("AUTH_ENABLED", false),
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Oracle: OracleConfig{
			URL:     getEnv("ORACLE_URL", "https://api.infermedica.com/v3"),
			AppID:   getEnv("ORACLE_APP_ID", ""),
			AppKey:  getEnv("ORACLE_APP_KEY", ""),
			Timeout: getEnvDuration("ORACLE_TIMEOUT", 15*time.Second),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", "openai"),
			OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			GeminiKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel: getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:     getEnvDuration("LLM_TIMEOUT", 20*time.Second),
		},
		Interview: InterviewConfig{
			MinQuestions:             getEnvInt("MIN_QUESTIONS", 3),
			MaxQuestions:             getEnvInt("MAX_QUESTIONS", 10),
			ProbabilityThreshold:     getEnvFloat("PROBABILITY_THRESHOLD", 0.7),
			ProbabilityDiffThreshold: getEnvFloat("PROBABILITY_DIFF_THRESHOLD", 0.15),
			MinAge:                   getEnvInt("MIN_AGE", 18),
		},
		Catalog: CatalogConfig{
			CacheFile:   getEnv("SYMPTOM_CACHE_FILE", "symptoms_cache.json"),
			CacheExpiry: getEnvDuration("SYMPTOM_CACHE_EXPIRY", 24*time.Hour),
		},
		Wearable: WearableConfig{
			Provider:           getEnv("WEARABLE_PROVIDER", "none"),
			FitbitAPIURL:       getEnv("FITBIT_API_URL", "https://api.fitbit.com"),
			FitbitTokenURL:     getEnv("FITBIT_TOKEN_URL", "https://api.fitbit.com/oauth2/token"),
			FitbitClientID:     getEnv("FITBIT_CLIENT_ID", ""),
			FitbitClientSecret: getEnv("FITBIT_CLIENT_SECRET", ""),
			DeviceHubHost:      getEnv("DEVICEHUB_HOST", "localhost"),
			DeviceHubPort:      getEnvInt("DEVICEHUB_PORT", 1433),
			DeviceHubDatabase:  getEnv("DEVICEHUB_DB", "devicehub"),
			DeviceHubUser:      getEnv("DEVICEHUB_USER", "sa"),
			DeviceHubPassword:  getEnv("DEVICEHUB_PASSWORD", ""),
			DeviceHubTable:     getEnv("DEVICEHUB_TABLE", "dbo.VitalReadings"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvInt("RATE_LIMIT_RPS", 2),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Interview.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects policy knobs the stop rule cannot work with.
func (c InterviewConfig) Validate() error {
	if c.MinQuestions < 0 {
		return fmt.Errorf("MIN_QUESTIONS must be >= 0, got %d", c.MinQuestions)
	}
	if c.MaxQuestions < c.MinQuestions {
		return fmt.Errorf("MAX_QUESTIONS (%d) must be >= MIN_QUESTIONS (%d)", c.MaxQuestions, c.MinQuestions)
	}
	if c.ProbabilityThreshold < 0 || c.ProbabilityThreshold > 1 {
		return fmt.Errorf("PROBABILITY_THRESHOLD must be within [0,1], got %v", c.ProbabilityThreshold)
	}
	if c.ProbabilityDiffThreshold < 0 || c.ProbabilityDiffThreshold > 1 {
		return fmt.Errorf("PROBABILITY_DIFF_THRESHOLD must be within [0,1], got %v", c.ProbabilityDiffThreshold)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
