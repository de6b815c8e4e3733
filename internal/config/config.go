package config

import (
	"errors"
	"fmt"
	"issue-map/internal/model"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"
)

type Config struct {
	Env         string
	LogLevel    string
	DatabaseURL string

	HTTP     HTTPConfig
	Redis    RedisConfig
	Uploads  UploadConfig
	Webhook  WebhookConfig
	Auth     AuthConfig
	Reporter ReporterConfig
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr        string
	User        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ListTTL     time.Duration
}

type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// AuthConfig enables bearer-token attribution of resolve requests when Secret is set.
type AuthConfig struct {
	Secret string
}

type ReporterConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// GPS is the device position used for GPS requests, "lat,lng". Empty means unsupported.
	GPS string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:         v.GetString("ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		DatabaseURL: v.GetString("DATABASE_URL"),
		HTTP: HTTPConfig{
			Addr:            v.GetString("HTTP_ADDR"),
			ReadTimeout:     v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("HTTP_WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
		},
		Redis: RedisConfig{
			Addr:        v.GetString("REDIS_ADDR"),
			User:        v.GetString("REDIS_USER"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			MaxRetries:  v.GetInt("REDIS_MAX_RETRIES"),
			DialTimeout: v.GetDuration("REDIS_DIAL_TIMEOUT"),
			Timeout:     v.GetDuration("REDIS_TIMEOUT"),
			ListTTL:     v.GetDuration("REDIS_LIST_TTL"),
		},
		Uploads: UploadConfig{
			Dir:      v.GetString("UPLOAD_DIR"),
			MaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Webhook: WebhookConfig{
			URL:     v.GetString("WEBHOOK_URL"),
			Timeout: v.GetDuration("WEBHOOK_TIMEOUT"),
		},
		Auth: AuthConfig{
			Secret: v.GetString("AUTH_JWT_SECRET"),
		},
		Reporter: ReporterConfig{
			BaseURL: v.GetString("REPORTER_BASE_URL"),
			Token:   v.GetString("REPORTER_TOKEN"),
			Timeout: v.GetDuration("REPORTER_TIMEOUT"),
			GPS:     v.GetString("REPORTER_GPS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvLocal)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", "10s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_MAX_RETRIES", 3)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_TIMEOUT", "3s")
	v.SetDefault("REDIS_LIST_TTL", "30s")

	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 16*1024*1024)

	v.SetDefault("WEBHOOK_TIMEOUT", "5s")

	v.SetDefault("REPORTER_BASE_URL", "http://localhost:8080")
	v.SetDefault("REPORTER_TIMEOUT", "30s")
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is empty")
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Reporter.GPS != "" {
		if _, err := ParseCoordinate(c.Reporter.GPS); err != nil {
			return fmt.Errorf("REPORTER_GPS: %w", err)
		}
	}
	return nil
}

// ParseCoordinate parses "lat,lng" in decimal degrees.
func ParseCoordinate(s string) (model.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Coordinate{}, fmt.Errorf("expected \"lat,lng\", got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("parse latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("parse longitude: %w", err)
	}
	c := model.Coordinate{Latitude: lat, Longitude: lng}
	if err := c.Validate(); err != nil {
		return model.Coordinate{}, err
	}
	return c, nil
}
