package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	DatabaseDSN string `mapstructure:"database_dsn"`

	RecordingsDir        string        `mapstructure:"recordings_dir"`
	MaxRecordingDuration time.Duration `mapstructure:"max_recording_duration"`

	ChatRetention         time.Duration `mapstructure:"chat_retention"`
	RecordingRetention    time.Duration `mapstructure:"recording_retention"`
	NotificationRetention time.Duration `mapstructure:"notification_retention"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("recordings_dir", "./recordings")
	v.SetDefault("max_recording_duration", "4h")
	v.SetDefault("chat_retention", "24h")
	v.SetDefault("recording_retention", "720h")
	v.SetDefault("notification_retention", "720h")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
