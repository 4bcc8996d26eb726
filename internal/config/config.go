package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	HTTPAddr     string `mapstructure:"http_addr"`
	DatabaseURL  string `mapstructure:"database_url"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	DeepLinkBase string `mapstructure:"deep_link_base"`
	Debug        bool   `mapstructure:"debug"`

	Redis    RedisConfig
	Telegram TelegramConfig
	Kafka    KafkaConfig
	WS       WSConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type TelegramConfig struct {
	BotToken string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type WSConfig struct {
	MessagesPerSecond float64
	Burst             int
	EventQueueSize    int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.S().Debugf("no .env file loaded: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("deep_link_base", "https://lessons.example.com/chat")
	v.SetDefault("debug", false)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("telegram_bot_token", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "chat.events")
	v.SetDefault("ws_messages_per_second", 5.0)
	v.SetDefault("ws_burst", 10)
	v.SetDefault("event_queue_size", 1024)

	cfg := &Config{
		HTTPAddr:     v.GetString("http_addr"),
		DatabaseURL:  v.GetString("database_url"),
		JWTSecret:    v.GetString("jwt_secret"),
		DeepLinkBase: strings.TrimRight(v.GetString("deep_link_base"), "/"),
		Debug:        v.GetBool("debug"),
		Redis: RedisConfig{
			Addr:     v.GetString("redis_addr"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Telegram: TelegramConfig{
			BotToken: v.GetString("telegram_bot_token"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka_brokers")),
			Topic:   v.GetString("kafka_topic"),
		},
		WS: WSConfig{
			MessagesPerSecond: v.GetFloat64("ws_messages_per_second"),
			Burst:             v.GetInt("ws_burst"),
			EventQueueSize:    v.GetInt("event_queue_size"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if c.WS.EventQueueSize <= 0 {
		return errors.New("EVENT_QUEUE_SIZE must be positive")
	}
	if c.WS.MessagesPerSecond <= 0 || c.WS.Burst <= 0 {
		return errors.New("WS_MESSAGES_PER_SECOND and WS_BURST must be positive")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
