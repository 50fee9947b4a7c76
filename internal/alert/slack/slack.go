// Package slack delivers alerts through a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/openclaw/agentops/internal/alert"
)

// maxRetries is the max number of retries for rate-limited webhook posts.
const maxRetries = 3

// Sender implements alert.Sender for a Slack incoming webhook.
type Sender struct {
	webhookURL  string
	client      *http.Client
	baseBackoff time.Duration
}

// Opts holds parameters for creating a Slack Sender.
type Opts struct {
	WebhookURL string
	// HTTPClient overrides the client used for webhook posts.
	HTTPClient *http.Client
}

// New creates a Slack Sender.
func New(opts Opts) (*Sender, error) {
	if opts.WebhookURL == "" {
		return nil, fmt.Errorf("slack: webhook url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Sender{webhookURL: opts.WebhookURL, client: client, baseBackoff: time.Second}, nil
}

// Name implements alert.Sender.
func (s *Sender) Name() string { return "slack" }

// Send posts msg as a webhook message with one attachment.
func (s *Sender) Send(ctx context.Context, msg alert.Message) error {
	payload := &slackapi.WebhookMessage{
		Text:        msg.Text,
		Attachments: []slackapi.Attachment{toAttachment(msg)},
	}
	err := s.retryOnRateLimit(ctx, func() error {
		return slackapi.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, payload)
	})
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

// toAttachment converts a Message to a Slack Attachment.
func toAttachment(msg alert.Message) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    msg.Color,
		Fallback: msg.Title,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries with backoff while Slack answers 429.
// It respects context cancellation and the RetryAfter duration when given.
func (s *Sender) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		wait, limited := rateLimitWait(err)
		if !limited || attempt == maxRetries {
			return err
		}
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}

func rateLimitWait(err error) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	var sce slackapi.StatusCodeError
	if errors.As(err, &sce) && sce.Code == http.StatusTooManyRequests {
		return 0, true
	}
	return 0, false
}
