package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
)

// TelegramNotifier implements the Notifier interface via the Telegram Bot
// API.
type TelegramNotifier struct {
	cfg    config.TelegramConfig
	client *http.Client
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) model.Notifier {
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the message to the configured chat. Telegram has no subject
// line, so the subject becomes the first line of the message.
func (n *TelegramNotifier) Send(subject, body string) error {
	payload := map[string]any{
		"chat_id":                  n.cfg.ChatID,
		"text":                     subject + "\n\n" + body,
		"disable_web_page_preview": true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.Token)
	resp, err := n.client.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}

// MultiNotifier fans one notification out to several channels. Send returns
// the first error but still attempts every channel.
type MultiNotifier struct {
	notifiers []model.Notifier
}

// NewMultiNotifier creates a notifier over all given channels.
func NewMultiNotifier(notifiers ...model.Notifier) model.Notifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers to every channel.
func (n *MultiNotifier) Send(subject, body string) error {
	var firstErr error
	for _, notifier := range n.notifiers {
		if err := notifier.Send(subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
