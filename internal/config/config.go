package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all configuration for our application
type Config struct {
	Port                 string
	Origin               string
	Environment          string
	JWTSecret            string
	JWTExpirationMinutes int
	Database             DatabaseConfig
	Log                  LogConfig
	EMR                  EMRConfig
	Batch                BatchConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Name         string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string
	Format string
}

// EMRConfig holds the external clinical system connection and import policy.
type EMRConfig struct {
	BaseURL             string
	APIKey              string
	FetchTimeoutSeconds int
	FetchRetryCount     int
	LockTTLMinutes      int
	LabItemCodes        []string
	StrictCodes         bool
}

// BatchConfig holds the defaults for scheduler-triggered imports.
type BatchConfig struct {
	DaysBack   int
	MaxRetries int
	Timezone   string
	Location   *time.Location
}

// DefaultLabItemCodes are the lab items the ward stores when EMR_LAB_ITEM_CODES is unset.
var DefaultLabItemCodes = []string{
	"WBC", "RBC", "HGB", "HCT", "PLT",
	"NA", "K", "CL", "BUN", "CRE",
	"GLU", "AST", "ALT", "CRP", "ALB",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "ward"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	var err error
	if dbConfig.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if dbConfig.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}

	jwtExpMinutes, err := getEnvInt("JWT_EXPIRATION_MINUTES", 15)
	if err != nil {
		return nil, err
	}

	emrConfig := EMRConfig{
		BaseURL:      getEnv("EMR_BASE_URL", "http://localhost:8090"),
		APIKey:       getEnv("EMR_API_KEY", ""),
		LabItemCodes: splitList(getEnv("EMR_LAB_ITEM_CODES", strings.Join(DefaultLabItemCodes, ","))),
	}
	if emrConfig.FetchTimeoutSeconds, err = getEnvInt("EMR_FETCH_TIMEOUT_SECONDS", 0); err != nil {
		return nil, err
	}
	if emrConfig.FetchRetryCount, err = getEnvInt("EMR_FETCH_RETRY_COUNT", 0); err != nil {
		return nil, err
	}
	if emrConfig.LockTTLMinutes, err = getEnvInt("EMR_LOCK_TTL_MINUTES", 30); err != nil {
		return nil, err
	}
	if emrConfig.LockTTLMinutes <= 0 {
		return nil, fmt.Errorf("invalid EMR_LOCK_TTL_MINUTES: must be positive, got %d", emrConfig.LockTTLMinutes)
	}
	if emrConfig.StrictCodes, err = strconv.ParseBool(getEnv("EMR_STRICT_CODES", "false")); err != nil {
		return nil, fmt.Errorf("invalid EMR_STRICT_CODES: %w", err)
	}

	batchConfig := BatchConfig{}
	if batchConfig.DaysBack, err = getEnvInt("BATCH_DAYS_BACK", 1); err != nil {
		return nil, err
	}
	if batchConfig.MaxRetries, err = getEnvInt("BATCH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	// the ward's calendar day; "Local" follows TZ on the host
	batchConfig.Timezone = getEnv("BATCH_TIMEZONE", "Local")
	if batchConfig.Location, err = time.LoadLocation(batchConfig.Timezone); err != nil {
		return nil, fmt.Errorf("invalid BATCH_TIMEZONE: %w", err)
	}

	return &Config{
		Port:                 getEnv("PORT", "3001"),
		Origin:               getEnv("ORIGIN", "http://localhost:4200"),
		Environment:          getEnv("APP_ENV", "development"),
		JWTSecret:            getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTExpirationMinutes: jwtExpMinutes,
		Database:             dbConfig,
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		EMR:   emrConfig,
		Batch: batchConfig,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
