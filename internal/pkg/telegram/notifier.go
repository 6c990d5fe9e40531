package telegram

import (
	"fmt"

	"github.com/go-resty/resty/v2"
)

// Notifier posts admin reports to a Telegram channel via the Bot API.
type Notifier struct {
	token   string
	channel string
	client  *resty.Client
}

// NewNotifier creates a channel notifier. With an empty token or channel
// the notifier is disabled and Send becomes a no-op.
func NewNotifier(token, channel string) *Notifier {
	n := &Notifier{token: token, channel: channel}
	if token != "" {
		n.client = resty.New().SetBaseURL("https://api.telegram.org/bot" + token)
	}
	return n
}

// Enabled reports whether the notifier is configured.
func (n *Notifier) Enabled() bool {
	return n.client != nil && n.channel != ""
}

// Send posts an HTML-formatted message to the report channel.
func (n *Notifier) Send(text string) error {
	if !n.Enabled() {
		return nil
	}
	_, err := n.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"chat_id":    n.channel,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	return nil
}
