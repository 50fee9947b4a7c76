package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/openclaw/agentops/internal/alert"
)

func testMessage() alert.Message {
	return alert.Message{
		Text:  "Agent a: Session s1 failed",
		Title: "Session s1 failed",
		Body:  "details",
		Color: alert.ColorError,
		Fields: []alert.Field{
			{Name: "Agent", Value: "a", Short: true},
		},
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Opts{}); err == nil {
		t.Fatal("expected error for empty webhook url")
	}
}

func TestSend_PostsAttachment(t *testing.T) {
	var got slackapi.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := New(Opts{WebhookURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Name() != "slack" {
		t.Errorf("Name() = %q", s.Name())
	}
	if err := s.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Text != "Agent a: Session s1 failed" {
		t.Errorf("text = %q", got.Text)
	}
	if len(got.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(got.Attachments))
	}
	att := got.Attachments[0]
	if att.Title != "Session s1 failed" || att.Color != alert.ColorError {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || att.Fields[0].Title != "Agent" || !att.Fields[0].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, _ := New(Opts{WebhookURL: srv.URL, HTTPClient: srv.Client()})
	s.baseBackoff = time.Millisecond
	if err := s.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("calls = %d, want 2", n)
	}
}

func TestSend_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, _ := New(Opts{WebhookURL: srv.URL, HTTPClient: srv.Client()})
	if err := s.Send(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error from 500 response")
	}
}
