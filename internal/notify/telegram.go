package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/models"
)

const defaultTelegramURL = "https://api.telegram.org"

type TelegramConfig struct {
	IsEnabled bool
	BotToken  string
	ChatID    string
	BaseURL   string
}

// TelegramSink sends payment notifications to the landlord's Telegram chat.
type TelegramSink struct {
	logger *logrus.Logger
	client *http.Client
	config TelegramConfig
}

func NewTelegramSink(config TelegramConfig, logger *logrus.Logger) *TelegramSink {
	if config.BaseURL == "" {
		config.BaseURL = defaultTelegramURL
	}
	return &TelegramSink{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config: config,
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, n models.Notification) error {
	return s.SendMessage(ctx, formatPayment(n))
}

// formatPayment renders a payment notification as Telegram HTML.
func formatPayment(n models.Notification) string {
	return fmt.Sprintf(
		"<b>Payment received</b>\n\n"+
			"👤 %s\n"+
			"🏠 Unit %s\n"+
			"💰 KES %s\n"+
			"📊 Balance: KES %s\n"+
			"🕒 %s",
		html.EscapeString(n.TenantName),
		html.EscapeString(n.UnitLabel),
		n.Amount.StringFixed(2),
		n.NewBalance.StringFixed(2),
		n.Timestamp.UTC().Format("2006-01-02 15:04 UTC"),
	)
}

// SendMessage sends a message to the configured Telegram chat
func (s *TelegramSink) SendMessage(ctx context.Context, message string) error {
	if !s.config.IsEnabled {
		return nil
	}

	if s.config.BotToken == "" {
		return errors.New("Telegram bot token is not configured")
	}

	if s.config.ChatID == "" {
		return errors.New("Telegram chat ID is not configured")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.config.BaseURL, s.config.BotToken)
	payload := map[string]interface{}{
		"chat_id":    s.config.ChatID,
		"text":       message,
		"parse_mode": "HTML",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build Telegram request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Telegram API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return errors.New("invalid bot token - please check your token from @BotFather")
		case http.StatusBadRequest:
			return fmt.Errorf("invalid chat ID or message format: %s", string(body))
		case http.StatusForbidden:
			return errors.New("bot was blocked by the user or chat")
		case http.StatusNotFound:
			return errors.New("bot not found - please check your token from @BotFather")
		default:
			return fmt.Errorf("Telegram API error (status %d): %s", resp.StatusCode, string(body))
		}
	}

	s.logger.WithField("chat_id", s.config.ChatID).Debug("Sent Telegram notification")
	return nil
}
