// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database  DatabaseConfig  `json:"database"`
	Server    ServerConfig    `json:"server"`
	Meta      MetaConfig      `json:"meta"`
	Twilio    TwilioConfig    `json:"twilio"`
	Gupshup   GupshupConfig   `json:"gupshup"`
	Messaging MessagingConfig `json:"messaging"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
	Cache     CacheConfig     `json:"cache"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

// MetaConfig holds WhatsApp Cloud API credentials
type MetaConfig struct {
	AccessToken       string        `json:"access_token"`
	PhoneNumberID     string        `json:"phone_number_id"`
	BusinessAccountID string        `json:"business_account_id"`
	AppSecret         string        `json:"app_secret"`
	VerifyToken       string        `json:"verify_token"`
	BaseURL           string        `json:"base_url"`
	Timeout           time.Duration `json:"timeout"`
}

// TwilioConfig holds Twilio API and Content API credentials
type TwilioConfig struct {
	AccountSID     string        `json:"account_sid"`
	AuthToken      string        `json:"auth_token"`
	FromNumber     string        `json:"from_number"`
	APIBaseURL     string        `json:"api_base_url"`
	ContentBaseURL string        `json:"content_base_url"`
	Timeout        time.Duration `json:"timeout"`
}

// GupshupConfig holds Gupshup WhatsApp app credentials
type GupshupConfig struct {
	APIKey        string        `json:"api_key"`
	AppID         string        `json:"app_id"`
	AppName       string        `json:"app_name"`
	SourceNumber  string        `json:"source_number"`
	WebhookSecret string        `json:"webhook_secret"`
	BaseURL       string        `json:"base_url"`
	Timeout       time.Duration `json:"timeout"`
}

// MessagingConfig holds dispatch-wide behavior knobs
type MessagingConfig struct {
	DefaultProvider       string        `json:"default_provider"`
	DefaultMonthlyQuota   int           `json:"default_monthly_quota"`
	HealthCheckInterval   time.Duration `json:"health_check_interval"`
	TemplateSyncInterval  time.Duration `json:"template_sync_interval"`
	MappingReloadInterval time.Duration `json:"mapping_reload_interval"`
	WebhookBasePath       string        `json:"webhook_base_path"`
	PublicBaseURL         string        `json:"public_base_url"`
}

type LoggingConfig struct {
	Level        string `json:"level"`  // debug, info, warn, error
	Format       string `json:"format"` // json, text
	Output       string `json:"output"` // stdout, file, both
	FilePath     string `json:"file_path"`
	MaxSize      int    `json:"max_size"` // MB
	MaxBackups   int    `json:"max_backups"`
	MaxAge       int    `json:"max_age"` // days
	Compress     bool   `json:"compress"`
	EnableCaller bool   `json:"enable_caller"`

	// Access Logs
	EnableAccessLog bool   `json:"enable_access_log"`
	AccessLogPath   string `json:"access_log_path"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`

	CollectDBMetrics  bool `json:"collect_db_metrics"`
	CollectAppMetrics bool `json:"collect_app_metrics"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "messaging"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB; webhook payloads are small
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Meta: MetaConfig{
			AccessToken:       getEnvString("META_ACCESS_TOKEN", ""),
			PhoneNumberID:     getEnvString("META_PHONE_NUMBER_ID", ""),
			BusinessAccountID: getEnvString("META_BUSINESS_ACCOUNT_ID", ""),
			AppSecret:         getEnvString("META_APP_SECRET", ""),
			VerifyToken:       getEnvString("META_VERIFY_TOKEN", ""),
			BaseURL:           getEnvString("META_BASE_URL", "https://graph.facebook.com/v19.0"),
			Timeout:           getEnvDuration("META_TIMEOUT", 15*time.Second),
		},
		Twilio: TwilioConfig{
			AccountSID:     getEnvString("TWILIO_ACCOUNT_SID", ""),
			AuthToken:      getEnvString("TWILIO_AUTH_TOKEN", ""),
			FromNumber:     getEnvString("TWILIO_FROM_NUMBER", ""),
			APIBaseURL:     getEnvString("TWILIO_API_BASE_URL", "https://api.twilio.com/2010-04-01"),
			ContentBaseURL: getEnvString("TWILIO_CONTENT_BASE_URL", "https://content.twilio.com/v1"),
			Timeout:        getEnvDuration("TWILIO_TIMEOUT", 15*time.Second),
		},
		Gupshup: GupshupConfig{
			APIKey:        getEnvString("GUPSHUP_API_KEY", ""),
			AppID:         getEnvString("GUPSHUP_APP_ID", ""),
			AppName:       getEnvString("GUPSHUP_APP_NAME", ""),
			SourceNumber:  getEnvString("GUPSHUP_SOURCE_NUMBER", ""),
			WebhookSecret: getEnvString("GUPSHUP_WEBHOOK_SECRET", ""),
			BaseURL:       getEnvString("GUPSHUP_BASE_URL", "https://api.gupshup.io"),
			Timeout:       getEnvDuration("GUPSHUP_TIMEOUT", 15*time.Second),
		},
		Messaging: MessagingConfig{
			DefaultProvider:       getEnvString("MESSAGING_DEFAULT_PROVIDER", "meta"),
			DefaultMonthlyQuota:   getEnvInt("MESSAGING_DEFAULT_MONTHLY_QUOTA", 1000),
			HealthCheckInterval:   getEnvDuration("MESSAGING_HEALTH_CHECK_INTERVAL", 60*time.Second),
			TemplateSyncInterval:  getEnvDuration("MESSAGING_TEMPLATE_SYNC_INTERVAL", 10*time.Minute),
			MappingReloadInterval: getEnvDuration("MESSAGING_MAPPING_RELOAD_INTERVAL", 5*time.Minute),
			WebhookBasePath:       getEnvString("MESSAGING_WEBHOOK_BASE_PATH", "/api/v1/webhooks"),
			PublicBaseURL:         getEnvString("MESSAGING_PUBLIC_BASE_URL", ""),
		},
		Logging: LoggingConfig{
			Level:           getEnvString("LOG_LEVEL", "info"),
			Format:          getEnvString("LOG_FORMAT", "json"),
			Output:          getEnvString("LOG_OUTPUT", "file"),
			FilePath:        getEnvString("LOG_FILE_PATH", "/var/log/messaging-core/app.log"),
			MaxSize:         getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:      getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:          getEnvInt("LOG_MAX_AGE", 30),
			Compress:        getEnvBool("LOG_COMPRESS", true),
			EnableCaller:    getEnvBool("LOG_ENABLE_CALLER", true),
			EnableAccessLog: getEnvBool("LOG_ENABLE_ACCESS", true),
			AccessLogPath:   getEnvString("LOG_ACCESS_PATH", "/var/log/messaging-core/access.log"),
		},
		Metrics: MetricsConfig{
			Enabled:           getEnvBool("METRICS_ENABLED", true),
			Port:              getEnvInt("METRICS_PORT", 9090),
			Path:              getEnvString("METRICS_PATH", "/metrics"),
			CollectDBMetrics:  getEnvBool("METRICS_COLLECT_DB", true),
			CollectAppMetrics: getEnvBool("METRICS_COLLECT_APP", true),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "msgcore:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Vendor credentials are each optional, but at least one vendor must
	// be fully configured or every dispatch would fail at routing
	metaOK := cfg.Meta.AccessToken != "" && cfg.Meta.PhoneNumberID != ""
	twilioOK := cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != ""
	gupshupOK := cfg.Gupshup.APIKey != "" && cfg.Gupshup.AppID != ""
	if !metaOK && !twilioOK && !gupshupOK {
		errors = append(errors, "at least one messaging provider must be configured (META_*, TWILIO_* or GUPSHUP_*)")
	}
	if metaOK && cfg.Meta.AppSecret == "" {
		errors = append(errors, "META_APP_SECRET is required when Meta is configured (webhook verification)")
	}

	// Validate messaging configuration
	switch cfg.Messaging.DefaultProvider {
	case "meta", "twilio", "gupshup":
	default:
		errors = append(errors, "MESSAGING_DEFAULT_PROVIDER must be one of: meta, twilio, gupshup")
	}
	if cfg.Messaging.DefaultMonthlyQuota < 0 {
		errors = append(errors, "MESSAGING_DEFAULT_MONTHLY_QUOTA must not be negative")
	}
	if cfg.Messaging.HealthCheckInterval <= 0 {
		errors = append(errors, "MESSAGING_HEALTH_CHECK_INTERVAL must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
