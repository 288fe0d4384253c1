package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/digimosa/hawk-scan/internal/models"
)

const slackWebhookPrefix = "https://hooks.slack.com/services/"

// Slack posts messages to an incoming webhook.
type Slack struct {
	url    string
	client *http.Client
}

// NewSlack validates the webhook URL. client may be nil.
func NewSlack(webhookURL string, client *http.Client) (*Slack, error) {
	if !strings.HasPrefix(webhookURL, slackWebhookPrefix) {
		return nil, fmt.Errorf("slack webhook url must start with %s", slackWebhookPrefix)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Slack{url: webhookURL, client: client}, nil
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, msg models.Message) error {
	err := slack.PostWebhookCustomHTTPContext(ctx, s.url, s.client, &slack.WebhookMessage{Text: msg.Text()})
	if err == nil {
		return nil
	}
	nerr := &NotifyError{Channel: s.Name(), Err: err}
	var status slack.StatusCodeError
	if errors.As(err, &status) {
		nerr.Status = status.Code
	}
	return nerr
}
