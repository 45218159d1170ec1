package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	LogLevel                  string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	Database                  DatabaseConfig
	Anon                      AnonConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	Path     string
	DSN      string
	Debug    bool
}

// AnonConfig tunes the anonymous dialog engine.
type AnonConfig struct {
	MainAdminID  int64
	AdminUserIDs []int64
	// PublicChannelID is the user that receives approved public posts.
	PublicChannelID int64
	ReplyTimeout    time.Duration
	RateWindow      time.Duration
	RateMaxHits     int
	RateBlock       time.Duration
	MinLength       int
	MaxLength       int
	AdminMaxLength  int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "anon"),
		Path:     getEnv("DB_PATH", "anon.db"),
		Debug:    getEnv("DB_DEBUG", "false") == "true",
	}

	switch dbConfig.Driver {
	case "mysql":
		// Build DSN (Data Source Name) for MySQL connection
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "sqlite":
		dbConfig.DSN = dbConfig.Path
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want mysql or sqlite", dbConfig.Driver)
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	anonConfig, err := loadAnonConfig()
	if err != nil {
		return nil, err
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("APP_ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", ""),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		Database:                  dbConfig,
		Anon:                      anonConfig,
	}, nil
}

func loadAnonConfig() (AnonConfig, error) {
	var (
		cfg AnonConfig
		err error
	)
	if cfg.MainAdminID, err = strconv.ParseInt(getEnv("ANON_MAIN_ADMIN_ID", "0"), 10, 64); err != nil {
		return cfg, fmt.Errorf("invalid ANON_MAIN_ADMIN_ID: %w", err)
	}
	if cfg.AdminUserIDs, err = parseIDList(getEnv("ANON_ADMIN_USER_IDS", "")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_ADMIN_USER_IDS: %w", err)
	}
	if cfg.PublicChannelID, err = strconv.ParseInt(getEnv("ANON_PUBLIC_CHANNEL_ID", "0"), 10, 64); err != nil {
		return cfg, fmt.Errorf("invalid ANON_PUBLIC_CHANNEL_ID: %w", err)
	}
	if cfg.ReplyTimeout, err = time.ParseDuration(getEnv("ANON_REPLY_TIMEOUT", "15m")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_REPLY_TIMEOUT: %w", err)
	}
	if cfg.RateWindow, err = time.ParseDuration(getEnv("ANON_RATE_WINDOW", "10s")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_RATE_WINDOW: %w", err)
	}
	if cfg.RateMaxHits, err = strconv.Atoi(getEnv("ANON_RATE_MAX_HITS", "10")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_RATE_MAX_HITS: %w", err)
	}
	if cfg.RateBlock, err = time.ParseDuration(getEnv("ANON_RATE_BLOCK", "300s")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_RATE_BLOCK: %w", err)
	}
	if cfg.MinLength, err = strconv.Atoi(getEnv("ANON_MIN_LENGTH", "5")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_MIN_LENGTH: %w", err)
	}
	if cfg.MaxLength, err = strconv.Atoi(getEnv("ANON_MAX_LENGTH", "1500")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_MAX_LENGTH: %w", err)
	}
	if cfg.AdminMaxLength, err = strconv.Atoi(getEnv("ANON_ADMIN_MAX_LENGTH", "1200")); err != nil {
		return cfg, fmt.Errorf("invalid ANON_ADMIN_MAX_LENGTH: %w", err)
	}
	return cfg, nil
}

// parseIDList parses a comma separated list of user IDs, ignoring blanks.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
