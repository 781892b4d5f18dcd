package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig настройки клиента с исходящей очередью
type ClientConfig struct {
	GatewayURL    string        `mapstructure:"GATEWAY_URL"`
	Token         string        `mapstructure:"OUTBOX_TOKEN"`
	StorePath     string        `mapstructure:"OUTBOX_PATH"`
	BatchSize     int           `mapstructure:"OUTBOX_BATCH"`
	MaxAttempts   int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	Schedule      string        `mapstructure:"OUTBOX_SCHEDULE"`
	ProbeInterval time.Duration `mapstructure:"OUTBOX_PROBE_INTERVAL"`
	SendTimeout   time.Duration `mapstructure:"OUTBOX_SEND_TIMEOUT"`
	LogLevel      string        `mapstructure:"LOG_LEVEL"`
}

func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.SetDefault("GATEWAY_URL", "http://localhost:8080")
	v.SetDefault("OUTBOX_PATH", "./outbox")
	v.SetDefault("OUTBOX_BATCH", 10)
	v.SetDefault("OUTBOX_MAX_ATTEMPTS", 3)
	v.SetDefault("OUTBOX_SCHEDULE", "@every 30s")
	v.SetDefault("OUTBOX_PROBE_INTERVAL", "5s")
	v.SetDefault("OUTBOX_SEND_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	bindEnvs(v, ClientConfig{})
	if err := readEnv(v); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("GATEWAY_URL is required")
	}

	if cfg.StorePath == "" {
		return nil, fmt.Errorf("OUTBOX_PATH is required")
	}

	if cfg.BatchSize <= 0 || cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("OUTBOX_BATCH and OUTBOX_MAX_ATTEMPTS must be positive")
	}

	return &cfg, nil
}
