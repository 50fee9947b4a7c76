// Package discord delivers alerts through a Discord webhook.
package discord

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/openclaw/agentops/internal/alert"
)

// maxRetries is the max number of retries for rate-limited webhook calls.
const maxRetries = 3

// webhookExecutor abstracts the discordgo.Session method we use, enabling
// test mocks.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Sender implements alert.Sender for a Discord webhook.
type Sender struct {
	exec        webhookExecutor
	webhookID   string
	token       string
	username    string
	baseBackoff time.Duration
}

// Opts holds parameters for creating a Discord Sender.
type Opts struct {
	WebhookURL string // https://discord.com/api/webhooks/{id}/{token}
	Username   string // display name override, defaults to "agentops"
	// For testing: inject a mock executor instead of a real session.
	Executor webhookExecutor
}

// New creates a Discord Sender.
func New(opts Opts) (*Sender, error) {
	id, token, err := ParseWebhookURL(opts.WebhookURL)
	if err != nil {
		return nil, err
	}
	s := &Sender{
		exec:        opts.Executor,
		webhookID:   id,
		token:       token,
		username:    opts.Username,
		baseBackoff: time.Second,
	}
	if s.username == "" {
		s.username = "agentops"
	}
	if s.exec == nil {
		// Webhook execution needs no bot token.
		sess, err := discordgo.New("")
		if err != nil {
			return nil, fmt.Errorf("discord: new session: %w", err)
		}
		s.exec = sess
	}
	return s, nil
}

// ParseWebhookURL extracts the webhook id and token from a webhook URL.
func ParseWebhookURL(raw string) (id, token string, err error) {
	if raw == "" {
		return "", "", fmt.Errorf("discord: webhook url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: webhook url %q has no /webhooks/{id}/{token} path", u.Redacted())
}

// Name implements alert.Sender.
func (s *Sender) Name() string { return "discord" }

// Send executes the webhook with msg as a single embed.
func (s *Sender) Send(ctx context.Context, msg alert.Message) error {
	params := &discordgo.WebhookParams{
		Content:  msg.Text,
		Username: s.username,
		Embeds:   []*discordgo.MessageEmbed{toEmbed(msg)},
	}
	err := s.retryOnRateLimit(ctx, func() error {
		_, execErr := s.exec.WebhookExecute(s.webhookID, s.token, false, params, discordgo.WithContext(ctx))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

// toEmbed converts a Message to a Discord Embed.
func toEmbed(msg alert.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
	}
	if msg.Color != "" {
		embed.Color = parseHexColor(msg.Color)
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	hex = strings.TrimPrefix(hex, "#")
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (s *Sender) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * s.baseBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
