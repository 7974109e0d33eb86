package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oakhollow/barnwatch/internal/analysis"
)

// Notifier delivers alert payloads out of band. Delivery is best-effort;
// the polling loop logs and moves on when it fails.
type Notifier interface {
	SendAlert(ctx context.Context, v *analysis.Verdict) error
}

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier sends alerts through the Telegram bot API.
type TelegramNotifier struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

func NewTelegramNotifier(token, chatID string, timeout time.Duration) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPIBase,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (n *TelegramNotifier) SendAlert(ctx context.Context, v *analysis.Verdict) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": n.chatID,
		"text":    FormatAlert(v),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// FormatAlert renders the alert message for one verdict.
func FormatAlert(v *analysis.Verdict) string {
	emoji := "📋"
	switch v.Severity {
	case analysis.SeverityWarning:
		emoji = "⚠️"
	case analysis.SeverityDanger:
		emoji = "🚨"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s Horse Barn Alert: %s\n", emoji, v.Severity)
	fmt.Fprintf(&sb, "Frame: %s\n", v.Frame)
	fmt.Fprintf(&sb, "Description: %s\n", v.Description)
	if len(v.Hazards) > 0 {
		fmt.Fprintf(&sb, "Hazards: %s\n", strings.Join(v.Hazards, ", "))
	}
	fmt.Fprintf(&sb, "Action: %s", v.RecommendedAction)
	return sb.String()
}
