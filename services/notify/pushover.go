package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/pkg/errors"
)

// DefaultPushoverURL is the Pushover message endpoint.
const DefaultPushoverURL = "https://api.pushover.net/1/messages.json"

// PushoverSender delivers notifications through the Pushover API with
// per-user credentials.
type PushoverSender struct {
	apiURL string
	client *http.Client
	log    *logger.Logger
}

var _ Sender = (*PushoverSender)(nil)

// NewPushoverSender creates a sender against apiURL, or the real
// Pushover endpoint when apiURL is empty.
func NewPushoverSender(apiURL string) *PushoverSender {
	if apiURL == "" {
		apiURL = DefaultPushoverURL
	}
	return &PushoverSender{
		apiURL: apiURL,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.ForNotifier(),
	}
}

// Send posts one message. A 4xx answer whose body acknowledges with
// status != 1 means Pushover rejected the request itself, almost always
// bad credentials, and is not retryable; 429 and 5xx are delivery
// problems that may clear on a later cycle.
func (p *PushoverSender) Send(ctx context.Context, creds model.Credentials, title, message string) error {
	if creds.APIToken == "" || creds.UserKey == "" {
		return errors.NewCredentials("pushover", "missing api token or user key")
	}

	form := url.Values{}
	form.Set("token", creds.APIToken)
	form.Set("user", creds.UserKey)
	form.Set("title", title)
	form.Set("message", message)
	form.Set("sound", "pushover")
	form.Set("priority", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.NewTransport("pushover", "build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.NewTransport("pushover", "send notification", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var ack struct {
		Status int      `json:"status"`
		Errors []string `json:"errors"`
	}
	// A non-JSON body, from a proxy or outage page, leaves ack zeroed.
	_ = json.Unmarshal(body, &ack)

	detail := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if len(ack.Errors) > 0 {
		detail = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.Join(ack.Errors, "; "))
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests && ack.Status != 1 {
		return errors.NewCredentials("pushover", detail)
	}
	return errors.NewTransport("pushover", detail, nil)
}
