package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/sirupsen/logrus"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server struct {
		Port           string        `env:"PORT" envDefault:"5250"`
		AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
		GinMode        string        `env:"GIN_MODE" envDefault:"release"`
		ShutdownGrace  time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
	}

	Database struct {
		// SQLite file path or DSN
		Path string `env:"DATABASE_PATH" envDefault:"database/landlord.db"`
	}

	Retry RetryConfig

	Notifications struct {
		// Undelivered events held before new ones are dropped
		BufferSize int `env:"NOTIFY_BUFFER_SIZE" envDefault:"256"`

		// Rows kept in the notification log
		Keep int `env:"NOTIFY_KEEP" envDefault:"500"`

		SendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`
	}

	Telegram struct {
		Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
		BotToken string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `env:"TELEGRAM_CHAT_ID"`
	}

	SMS struct {
		Enabled       bool   `env:"SMS_ENABLED" envDefault:"false"`
		AccountSID    string `env:"TWILIO_ACCOUNT_SID"`
		AuthToken     string `env:"TWILIO_AUTH_TOKEN"`
		FromPhone     string `env:"TWILIO_FROM_PHONE"`
		ComplaintLine string `env:"SMS_COMPLAINT_LINE"`
	}

	Rent struct {
		// Cron spec (UTC) for monthly rent accrual; empty disables the job
		AccrualSchedule string `env:"RENT_ACCRUAL_SCHEDULE" envDefault:"0 0 1 * *"`
	}
}

// RetryConfig controls how failed gateway callbacks are retried.
type RetryConfig struct {
	// Callbacks held for retry before new failures are dropped
	QueueSize int `env:"RETRY_QUEUE_SIZE" envDefault:"100"`

	// Maximum attempts per queued callback
	MaxRetries int `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`

	// Delay between attempts
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"5s"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when TELEGRAM_ENABLED is set")
	}
	if c.SMS.Enabled && (c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.FromPhone == "") {
		return fmt.Errorf("TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required when SMS_ENABLED is set")
	}
	if c.Retry.MaxRetries < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// NewLogger builds the JSON logger every component shares.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to INFO", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
