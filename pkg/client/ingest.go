package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

type ingestResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	ID        string `json:"id"`
}

func (r ingestResponse) id() string {
	switch {
	case r.ID != "":
		return r.ID
	case r.StepID != "":
		return r.StepID
	default:
		return r.SessionID
	}
}

func (c *Client) post(ctx context.Context, path string, event Event) (string, error) {
	var out ingestResponse
	if err := c.do(ctx, http.MethodPost, "/telemetry"+path, nil, event, &out); err != nil {
		return "", err
	}
	return out.id(), nil
}

// SessionStarted records a new session and returns its id. A zero
// StartTime is sent as the current time.
func (c *Client) SessionStarted(ctx context.Context, e SessionStartedEvent) (string, error) {
	if e.StartTime.IsZero() {
		e.StartTime = time.Now().UTC()
	}
	return c.post(ctx, "/session/started", e)
}

// SessionCompleted closes a running session.
func (c *Client) SessionCompleted(ctx context.Context, e SessionCompletedEvent) (string, error) {
	return c.post(ctx, "/session/completed", e)
}

// StepStarted records a new step and returns its id.
func (c *Client) StepStarted(ctx context.Context, e StepStartedEvent) (string, error) {
	return c.post(ctx, "/step/started", e)
}

// StepCompleted closes a running step.
func (c *Client) StepCompleted(ctx context.Context, e StepCompletedEvent) (string, error) {
	return c.post(ctx, "/step/completed", e)
}

// LlmCall records an LLM invocation and returns the generated row id.
func (c *Client) LlmCall(ctx context.Context, e LlmCallEvent) (string, error) {
	return c.post(ctx, "/llm/call", e)
}

// ToolCall records a tool invocation and returns the generated row id.
func (c *Client) ToolCall(ctx context.Context, e ToolCallEvent) (string, error) {
	return c.post(ctx, "/tool/call", e)
}

// batchEntry flattens an event and adds the "event" discriminator.
type batchEntry struct {
	Event
}

func (b batchEntry) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(b.Event)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("batch event %s: %w", b.EventKind(), err)
	}
	kind, err := json.Marshal(b.EventKind())
	if err != nil {
		return nil, err
	}
	fields["event"] = kind
	return json.Marshal(fields)
}

// Batch submits events in order. Per-event failures are reported in the
// result, not as an error.
func (c *Client) Batch(ctx context.Context, events ...Event) (*BatchResult, error) {
	body := struct {
		Events []batchEntry `json:"events"`
	}{Events: make([]batchEntry, 0, len(events))}
	for _, e := range events {
		body.Events = append(body.Events, batchEntry{e})
	}
	var out BatchResult
	if err := c.do(ctx, http.MethodPost, "/telemetry/batch", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
