package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Host     string `mapstructure:"DB_HOST"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	DBPort   string `mapstructure:"DB_PORT"`

	ServerPort     string   `mapstructure:"SERVER_PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`
	JWTKey         string   `mapstructure:"JWT_KEY"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RateLimitRequests int           `mapstructure:"RATE_LIMIT_REQUESTS"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`
	RateLimitBackend  string        `mapstructure:"RATE_LIMIT_BACKEND"`
	TypingBackend     string        `mapstructure:"TYPING_BACKEND"`

	S3Endpoint        string `mapstructure:"S3_ENDPOINT"`
	S3Region          string `mapstructure:"S3_REGION"`
	S3BucketName      string `mapstructure:"S3_BUCKET_NAME"`
	S3AccessKeyID     string `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicURL       string `mapstructure:"S3_PUBLIC_URL"`
}

// Бэкенды для счетчиков и typing-канала
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.DBPort)
}

func (c *Config) S3Enabled() bool {
	return c.S3BucketName != ""
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("RATE_LIMIT_REQUESTS", 30)
	v.SetDefault("RATE_LIMIT_WINDOW", "60s")
	v.SetDefault("RATE_LIMIT_BACKEND", BackendMemory)
	v.SetDefault("TYPING_BACKEND", BackendMemory)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("S3_REGION", "us-east-1")
}

func Load() (*Config, error) {
	v := viper.New()
	setServerDefaults(v)
	bindEnvs(v, Config{})
	if err := readEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}

	if c.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.DBPort == "" {
		return fmt.Errorf("DB_PORT is required")
	}

	if c.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.JWTKey == "" {
		return fmt.Errorf("JWT_KEY is required")
	}

	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}

	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}

	for _, b := range []string{c.RateLimitBackend, c.TypingBackend} {
		switch b {
		case BackendMemory:
		case BackendRedis:
			if c.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is required for the redis backend")
			}
		default:
			return fmt.Errorf("unknown backend %q", b)
		}
	}

	return nil
}

// bindEnvs регистрирует ключи структуры, чтобы Unmarshal видел переменные окружения без .env
func bindEnvs(v *viper.Viper, cfg any) {
	t := reflect.TypeOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			_ = v.BindEnv(key)
		}
	}
}

// readEnv читает .env, если он есть; переменные окружения имеют приоритет
func readEnv(v *viper.Viper) error {
	v.AddConfigPath("./")
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
