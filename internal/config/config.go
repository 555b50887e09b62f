package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Extractor ExtractorConfig
	Batch     BatchConfig
	Webhook   WebhookConfig
	CORS      CORSConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings for document storage.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// ExtractorConfig holds AI model extraction settings.
type ExtractorConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// BatchConfig holds batch orchestration settings.
type BatchConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	JobTimeoutSecs int `mapstructure:"job_timeout_secs"`
}

// WebhookConfig holds batch completion webhook settings.
type WebhookConfig struct {
	TimeoutSecs int `mapstructure:"timeout_secs"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the DOCSTREAM_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s") // streaming endpoints manage their own deadlines
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "docstream")
	v.SetDefault("db.password", "docstream_secret")
	v.SetDefault("db.name", "docstream_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "docstream-uploads")
	v.SetDefault("s3.endpoint", "")

	// Extractor defaults
	v.SetDefault("extractor.provider", "claude")
	v.SetDefault("extractor.api_key", "")
	v.SetDefault("extractor.default_model", "claude-sonnet-4-20250514")
	v.SetDefault("extractor.timeout_secs", 120)

	// Batch defaults
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.job_timeout_secs", 300)

	// Webhook defaults
	v.SetDefault("webhook.timeout_secs", 10)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":             "DOCSTREAM_SERVER_PORT",
		"server.read_timeout":     "DOCSTREAM_SERVER_READ_TIMEOUT",
		"server.write_timeout":    "DOCSTREAM_SERVER_WRITE_TIMEOUT",
		"server.environment":      "DOCSTREAM_SERVER_ENVIRONMENT",
		"db.host":                 "DOCSTREAM_DB_HOST",
		"db.port":                 "DOCSTREAM_DB_PORT",
		"db.user":                 "DOCSTREAM_DB_USER",
		"db.password":             "DOCSTREAM_DB_PASSWORD",
		"db.name":                 "DOCSTREAM_DB_NAME",
		"db.sslmode":              "DOCSTREAM_DB_SSLMODE",
		"db.max_open":             "DOCSTREAM_DB_MAX_OPEN",
		"db.max_idle":             "DOCSTREAM_DB_MAX_IDLE",
		"s3.region":               "DOCSTREAM_S3_REGION",
		"s3.bucket":               "DOCSTREAM_S3_BUCKET",
		"s3.endpoint":             "DOCSTREAM_S3_ENDPOINT",
		"s3.access_key":           "DOCSTREAM_S3_ACCESS_KEY",
		"s3.secret_key":           "DOCSTREAM_S3_SECRET_KEY",
		"extractor.provider":      "DOCSTREAM_EXTRACTOR_PROVIDER",
		"extractor.api_key":       "DOCSTREAM_EXTRACTOR_API_KEY",
		"extractor.default_model": "DOCSTREAM_EXTRACTOR_DEFAULT_MODEL",
		"extractor.timeout_secs":  "DOCSTREAM_EXTRACTOR_TIMEOUT_SECS",
		"batch.concurrency":       "DOCSTREAM_BATCH_CONCURRENCY",
		"batch.job_timeout_secs":  "DOCSTREAM_BATCH_JOB_TIMEOUT_SECS",
		"webhook.timeout_secs":    "DOCSTREAM_WEBHOOK_TIMEOUT_SECS",
		"cors.allowed_origins":    "DOCSTREAM_CORS_ALLOWED_ORIGINS",
		"log.level":               "DOCSTREAM_LOG_LEVEL",
		"log.format":              "DOCSTREAM_LOG_FORMAT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if DOCSTREAM_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("DOCSTREAM_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
	}
	cfg.Extractor = ExtractorConfig{
		Provider:     v.GetString("extractor.provider"),
		APIKey:       v.GetString("extractor.api_key"),
		DefaultModel: v.GetString("extractor.default_model"),
		TimeoutSecs:  v.GetInt("extractor.timeout_secs"),
	}
	cfg.Batch = BatchConfig{
		Concurrency:    v.GetInt("batch.concurrency"),
		JobTimeoutSecs: v.GetInt("batch.job_timeout_secs"),
	}
	cfg.Webhook = WebhookConfig{
		TimeoutSecs: v.GetInt("webhook.timeout_secs"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	return cfg, nil
}
