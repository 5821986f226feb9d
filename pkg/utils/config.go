package utils

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Nats     NatsConfig
	Reaper   ReaperConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	MaxConns int32
}

type GatewayConfig struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	Currency      string
	TimeoutSecs   int
}

type NatsConfig struct {
	URL     string
	Enabled bool
}

type ReaperConfig struct {
	HoldTTL  time.Duration
	Interval time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("GATEWAY_CURRENCY", "USD")
	viper.SetDefault("GATEWAY_TIMEOUT_SECS", 15)
	viper.SetDefault("NATS_ENABLED", false)
	viper.SetDefault("HOLD_TTL_MINUTES", 30)
	viper.SetDefault("REAPER_INTERVAL_MINUTES", 15)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Gateway: GatewayConfig{
			BaseURL:       viper.GetString("GATEWAY_BASE_URL"),
			ClientID:      viper.GetString("GATEWAY_CLIENT_ID"),
			ClientSecret:  viper.GetString("GATEWAY_CLIENT_SECRET"),
			WebhookSecret: viper.GetString("GATEWAY_WEBHOOK_SECRET"),
			Currency:      viper.GetString("GATEWAY_CURRENCY"),
			TimeoutSecs:   viper.GetInt("GATEWAY_TIMEOUT_SECS"),
		},
		Nats: NatsConfig{
			URL:     viper.GetString("NATS_URL"),
			Enabled: viper.GetBool("NATS_ENABLED"),
		},
		Reaper: ReaperConfig{
			HoldTTL:  time.Duration(viper.GetInt("HOLD_TTL_MINUTES")) * time.Minute,
			Interval: time.Duration(viper.GetInt("REAPER_INTERVAL_MINUTES")) * time.Minute,
		},
	}

	return config, nil
}
