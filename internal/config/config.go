package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries every tunable for the monitor. Values come from the
// environment and are threaded into constructors at startup.
type Config struct {
	InferenceHost string  `env:"COSMOS_HOST"        envDefault:"127.0.0.1"`
	InferencePort int     `env:"COSMOS_PORT"        envDefault:"8095"`
	Model         string  `env:"COSMOS_MODEL"       envDefault:"cosmos-reason2"`
	MaxTokens     int     `env:"COSMOS_MAX_TOKENS"  envDefault:"1024"`
	Temperature   float64 `env:"COSMOS_TEMPERATURE" envDefault:"0.2"`

	MaxImageDim int `env:"MAX_IMAGE_DIM" envDefault:"512"`
	JPEGQuality int `env:"JPEG_QUALITY"  envDefault:"85"`

	InferTimeout   time.Duration `env:"INFER_TIMEOUT"   envDefault:"120s"`
	ExtractTimeout time.Duration `env:"EXTRACT_TIMEOUT" envDefault:"30s"`
	AlertTimeout   time.Duration `env:"ALERT_TIMEOUT"   envDefault:"10s"`
	ReadyTimeout   time.Duration `env:"READY_TIMEOUT"   envDefault:"30s"`

	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID string `env:"TELEGRAM_CHAT_ID"`

	// DBType empty disables the session store entirely.
	DBType     string `env:"DB_TYPE"`
	DBPath     string `env:"DB_PATH"     envDefault:"./barnwatch.db"`
	DBHost     string `env:"DB_HOST"     envDefault:"localhost"`
	DBPort     int    `env:"DB_PORT"     envDefault:"5432"`
	DBUser     string `env:"DB_USER"     envDefault:"barnwatch"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"     envDefault:"barnwatch"`

	// StatusPort 0 disables the HTTP status server.
	StatusPort int    `env:"STATUS_PORT"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InferenceBaseURL is the root URL of the local inference server.
func (c *Config) InferenceBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.InferenceHost, c.InferencePort)
}
