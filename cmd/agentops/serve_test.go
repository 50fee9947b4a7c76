package main

import (
	"testing"

	"github.com/openclaw/agentops/internal/config"
)

func TestNewDispatcher(t *testing.T) {
	d, err := newDispatcher(config.AlertsConfig{})
	if err != nil {
		t.Fatalf("newDispatcher: %v", err)
	}
	if d != nil {
		t.Error("expected nil dispatcher when no destination is configured")
	}

	d, err = newDispatcher(config.AlertsConfig{
		SlackWebhookURL:   "https://hooks.slack.com/services/T000/B000/XXXX",
		DiscordWebhookURL: "https://discord.com/api/webhooks/123456/tok-en",
		OnStatuses:        []string{"failed"},
	})
	if err != nil {
		t.Fatalf("newDispatcher: %v", err)
	}
	if d == nil {
		t.Fatal("expected a dispatcher")
	}
	d.Wait()
}

func TestNewDispatcher_BadDiscordURL(t *testing.T) {
	_, err := newDispatcher(config.AlertsConfig{DiscordWebhookURL: "https://example.com/not-a-webhook"})
	if err == nil {
		t.Fatal("expected error for malformed discord webhook URL")
	}
}
