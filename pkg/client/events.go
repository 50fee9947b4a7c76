package client

import "time"

// Event kinds, as sent in the "event" field of a batch entry.
const (
	KindSessionStarted   = "session_started"
	KindSessionCompleted = "session_completed"
	KindStepStarted      = "step_started"
	KindStepCompleted    = "step_completed"
	KindLlmCall          = "llm_call"
	KindToolCall         = "tool_call"
)

// Event is an ingest payload that can travel in a batch.
type Event interface {
	EventKind() string
}

// SessionStartedEvent opens a session.
type SessionStartedEvent struct {
	TraceID       string    `json:"trace_id"`
	SessionID     string    `json:"session_id"`
	AgentID       string    `json:"agent_id"`
	TriggerSource string    `json:"trigger_source"`
	StartTime     time.Time `json:"start_time"`
}

// SessionCompletedEvent closes a running session. A nil EndTime means the
// server's receive time.
type SessionCompletedEvent struct {
	TraceID        string     `json:"trace_id"`
	SessionID      string     `json:"session_id"`
	Status         string     `json:"status"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	TotalSteps     *int64     `json:"total_steps,omitempty"`
	TotalTokensIn  *int64     `json:"total_tokens_in,omitempty"`
	TotalTokensOut *int64     `json:"total_tokens_out,omitempty"`
	ErrorCode      *string    `json:"error_code,omitempty"`
}

// StepStartedEvent opens a step inside a session.
type StepStartedEvent struct {
	TraceID   string     `json:"trace_id"`
	SessionID string     `json:"session_id"`
	StepID    string     `json:"step_id"`
	StepType  string     `json:"step_type"`
	SkillName string     `json:"skill_name,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
}

// StepCompletedEvent closes a running step. A nil DurationMs is derived
// from the step's start and end.
type StepCompletedEvent struct {
	TraceID      string     `json:"trace_id"`
	SessionID    string     `json:"session_id"`
	StepID       string     `json:"step_id"`
	Status       string     `json:"status"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	DurationMs   *int64     `json:"duration_ms,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
}

// LlmCallEvent records one model invocation.
type LlmCallEvent struct {
	TraceID      string  `json:"trace_id"`
	StepID       string  `json:"step_id"`
	SessionID    string  `json:"session_id"`
	AgentID      string  `json:"agent_id"`
	Model        string  `json:"model"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
	UserPrompt   *string `json:"user_prompt,omitempty"`
	FullContext  *string `json:"full_context,omitempty"`
	RawOutput    *string `json:"raw_output,omitempty"`
	ParsedOutput *string `json:"parsed_output,omitempty"`
	TokensIn     int64   `json:"tokens_in"`
	TokensOut    int64   `json:"tokens_out"`
	LatencyMs    int64   `json:"latency_ms"`
}

// ToolCallEvent records one tool invocation. Input and Output may be any
// JSON-encodable value.
type ToolCallEvent struct {
	TraceID    string `json:"trace_id"`
	StepID     string `json:"step_id"`
	SessionID  string `json:"session_id"`
	ToolName   string `json:"tool_name"`
	Input      any    `json:"input_json,omitempty"`
	Output     any    `json:"output_json,omitempty"`
	Status     string `json:"status"`
	LatencyMs  int64  `json:"latency_ms"`
	RetryCount int    `json:"retry_count,omitempty"`
}

func (SessionStartedEvent) EventKind() string   { return KindSessionStarted }
func (SessionCompletedEvent) EventKind() string { return KindSessionCompleted }
func (StepStartedEvent) EventKind() string      { return KindStepStarted }
func (StepCompletedEvent) EventKind() string    { return KindStepCompleted }
func (LlmCallEvent) EventKind() string          { return KindLlmCall }
func (ToolCallEvent) EventKind() string         { return KindToolCall }

// BatchItem is the outcome of one event in a batch.
type BatchItem struct {
	Index     int          `json:"index"`
	EventType string       `json:"event_type"`
	Success   bool         `json:"success"`
	ID        string       `json:"id,omitempty"`
	Error     string       `json:"error,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// BatchResult summarizes a batch.
type BatchResult struct {
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []BatchItem `json:"results"`
}
