// Package notifier предоставляет клиент внешней системы доставки уведомлений.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с системой доставки уведомлений.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Message описывает одно уведомление получателю.
type Message struct {
	RecipientUserID string `json:"recipientUserId"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	ClickURL        string `json:"clickUrl,omitempty"`
}

// NewClient создаёт HTTP-клиент для отправки уведомлений по указанному адресу.
// Временные сбои доставки ретраятся на уровне клиента с экспоненциальной паузой.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc.StandardClient(),
	}
}

// Send отправляет одно уведомление. Ошибка означает, что доставку стоит
// повторить позже; вызывающий никогда не блокирует на ней смену статуса билета.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notifier client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	url := base + "/api/notifications"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
