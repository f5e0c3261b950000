package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode string `mapstructure:"mode"`
	Port int    `mapstructure:"port"`

	// DeviceName is the name the relay announces to the remote
	// playback service for newly linked users.
	DeviceName string `mapstructure:"device_name"`

	GatewayURL    string `mapstructure:"gateway_url"`
	VoiceEndpoint string `mapstructure:"voice_endpoint"`

	DisconnectTimeout time.Duration `mapstructure:"disconnect_timeout"`
	BridgeCapacity    int           `mapstructure:"bridge_capacity"`
	ConnectRetries    int           `mapstructure:"connect_retries"`

	DatabasePath  string        `mapstructure:"database_path"`
	RedisURL      string        `mapstructure:"redis_url"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
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
	v.SetDefault("device_name", "Relay")
	v.SetDefault("gateway_url", "ws://127.0.0.1:9370/connect")
	v.SetDefault("voice_endpoint", "http://127.0.0.1:8081/api/whip")
	v.SetDefault("disconnect_timeout", "5m")
	v.SetDefault("bridge_capacity", 64*1024)
	v.SetDefault("connect_retries", 3)
	v.SetDefault("database_path", "./data/relay.db")
	v.SetDefault("redis_url", "")
	v.SetDefault("stats_interval", "1m")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
