// Package client is a typed Go client for the agentops HTTP API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Defaults for New.
const (
	DefaultBaseURL = "http://localhost:3000/api"
	DefaultTimeout = 30 * time.Second
)

// Client talks to one agentops API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New returns a client for baseURL, which includes the /api prefix.
// An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
	Message    string       // the "error" field, when present
	Errors     []FieldError // validation failures on 400
}

func (e *APIError) Error() string {
	switch {
	case len(e.Errors) > 0:
		parts := make([]string, 0, len(e.Errors))
		for _, fe := range e.Errors {
			parts = append(parts, fe.Field+": "+fe.Message)
		}
		return fmt.Sprintf("agentops: status %d: %s", e.StatusCode, strings.Join(parts, "; "))
	case e.Message != "":
		return fmt.Sprintf("agentops: status %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("agentops: status %d: %s", e.StatusCode, e.Body)
	}
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	var parsed struct {
		Error  string       `json:"error"`
		Errors []FieldError `json:"errors"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Message = parsed.Error
		e.Errors = parsed.Errors
	}
	return e
}

// do sends a request and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("agentops %s %s: marshal: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("agentops %s %s: create request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("agentops %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("agentops %s %s: read response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("agentops %s %s: decode response: %w", method, path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func escape(id string) string {
	return url.PathEscape(id)
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthDetailed calls GET /health/detailed.
func (c *Client) HealthDetailed(ctx context.Context) (*DetailedHealth, error) {
	var out DetailedHealth
	if err := c.get(ctx, "/health/detailed", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionQuery filters ListSessions. Zero fields are omitted.
type SessionQuery struct {
	AgentID string
	Status  string
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

func (q SessionQuery) values() url.Values {
	v := url.Values{}
	if q.AgentID != "" {
		v.Set("agent_id", q.AgentID)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if !q.From.IsZero() {
		v.Set("from", q.From.UTC().Format(time.RFC3339Nano))
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.UTC().Format(time.RFC3339Nano))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

// ListSessions calls GET /sessions.
func (c *Client) ListSessions(ctx context.Context, q SessionQuery) (*SessionList, error) {
	var out SessionList
	if err := c.get(ctx, "/sessions", q.values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession calls GET /sessions/:id.
func (c *Client) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var out SessionDetail
	if err := c.get(ctx, "/sessions/"+escape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionTimeline calls GET /sessions/:id/timeline.
func (c *Client) SessionTimeline(ctx context.Context, id string) (*Timeline, error) {
	var out Timeline
	if err := c.get(ctx, "/sessions/"+escape(id)+"/timeline", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionStats calls GET /sessions/:id/stats.
func (c *Client) SessionStats(ctx context.Context, id string) (*SessionStats, error) {
	var out SessionStats
	if err := c.get(ctx, "/sessions/"+escape(id)+"/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession calls DELETE /sessions/:id.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+escape(id), nil, nil, nil)
}

// ListAgents calls GET /agents.
func (c *Client) ListAgents(ctx context.Context) ([]AgentSummary, error) {
	var out []AgentSummary
	if err := c.get(ctx, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAgent calls GET /agents/:id.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*AgentDetail, error) {
	var out AgentDetail
	if err := c.get(ctx, "/agents/"+escape(agentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AgentSkills calls GET /agents/:id/skills.
func (c *Client) AgentSkills(ctx context.Context, agentID string) ([]SkillStat, error) {
	var out []SkillStat
	if err := c.get(ctx, "/agents/"+escape(agentID)+"/skills", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
