package ingest

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/openclaw/agentops/internal/models"
	"github.com/openclaw/agentops/internal/store"
)

// Event kinds, as carried in the "event" field of a batch entry.
const (
	KindSessionStarted   = "session_started"
	KindSessionCompleted = "session_completed"
	KindStepStarted      = "step_started"
	KindStepCompleted    = "step_completed"
	KindLlmCall          = "llm_call"
	KindToolCall         = "tool_call"
)

// Kinds lists every event kind in dispatch order.
var Kinds = []string{
	KindSessionStarted, KindSessionCompleted,
	KindStepStarted, KindStepCompleted,
	KindLlmCall, KindToolCall,
}

// SessionStarted opens a session.
type SessionStarted struct {
	TraceID       string `json:"trace_id" binding:"required"`
	SessionID     string `json:"session_id" binding:"required"`
	AgentID       string `json:"agent_id" binding:"required"`
	TriggerSource string `json:"trigger_source" binding:"required"`
	StartTime     string `json:"start_time" binding:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

func (e *SessionStarted) session() *models.Session {
	return &models.Session{
		ID:            e.SessionID,
		TraceID:       e.TraceID,
		AgentID:       e.AgentID,
		TriggerSource: e.TriggerSource,
		StartTime:     parseTime(e.StartTime),
	}
}

// SessionCompleted closes a running session with a terminal status.
type SessionCompleted struct {
	TraceID        string  `json:"trace_id" binding:"required"`
	SessionID      string  `json:"session_id" binding:"required"`
	Status         string  `json:"status" binding:"required,oneof=success failed cancelled timeout"`
	EndTime        string  `json:"end_time" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	TotalSteps     *int64  `json:"total_steps" binding:"omitempty,min=0"`
	TotalTokensIn  *int64  `json:"total_tokens_in" binding:"omitempty,min=0"`
	TotalTokensOut *int64  `json:"total_tokens_out" binding:"omitempty,min=0"`
	ErrorCode      *string `json:"error_code"`
}

func (e *SessionCompleted) completion(now time.Time) store.SessionCompletion {
	end := now
	if e.EndTime != "" {
		end = parseTime(e.EndTime)
	}
	return store.SessionCompletion{
		ID:             e.SessionID,
		Status:         e.Status,
		EndTime:        end,
		TotalSteps:     e.TotalSteps,
		TotalTokensIn:  e.TotalTokensIn,
		TotalTokensOut: e.TotalTokensOut,
		ErrorCode:      e.ErrorCode,
	}
}

// StepStarted opens a step inside a session.
type StepStarted struct {
	TraceID   string `json:"trace_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	StepID    string `json:"step_id" binding:"required"`
	StepType  string `json:"step_type" binding:"required,oneof=llm tool memory_read memory_write routing system"`
	SkillName string `json:"skill_name"`
	StartTime string `json:"start_time" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (e *StepStarted) step(now time.Time) *models.Step {
	start := now
	if e.StartTime != "" {
		start = parseTime(e.StartTime)
	}
	return &models.Step{
		ID:        e.StepID,
		SessionID: e.SessionID,
		TraceID:   e.TraceID,
		StepType:  e.StepType,
		SkillName: e.SkillName,
		StartTime: start,
	}
}

// StepCompleted closes a running step.
type StepCompleted struct {
	TraceID      string  `json:"trace_id" binding:"required"`
	SessionID    string  `json:"session_id" binding:"required"`
	StepID       string  `json:"step_id" binding:"required"`
	Status       string  `json:"status" binding:"required,oneof=success error"`
	EndTime      string  `json:"end_time" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	DurationMs   *int64  `json:"duration_ms" binding:"omitempty,min=0"`
	ErrorMessage *string `json:"error_message"`
}

func (e *StepCompleted) completion(now time.Time) store.StepCompletion {
	end := now
	if e.EndTime != "" {
		end = parseTime(e.EndTime)
	}
	return store.StepCompletion{
		ID:           e.StepID,
		SessionID:    e.SessionID,
		Status:       e.Status,
		EndTime:      end,
		DurationMs:   e.DurationMs,
		ErrorMessage: e.ErrorMessage,
	}
}

// LlmCall records one model invocation.
type LlmCall struct {
	TraceID      string  `json:"trace_id" binding:"required"`
	StepID       string  `json:"step_id" binding:"required"`
	SessionID    string  `json:"session_id" binding:"required"`
	AgentID      string  `json:"agent_id" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	SystemPrompt *string `json:"system_prompt"`
	UserPrompt   *string `json:"user_prompt"`
	FullContext  *string `json:"full_context"`
	RawOutput    *string `json:"raw_output"`
	ParsedOutput *string `json:"parsed_output"`
	TokensIn     *int64  `json:"tokens_in" binding:"required,min=0"`
	TokensOut    *int64  `json:"tokens_out" binding:"required,min=0"`
	LatencyMs    *int64  `json:"latency_ms" binding:"required,min=0"`
}

func (e *LlmCall) row() *models.LlmCall {
	return &models.LlmCall{
		StepID:       e.StepID,
		SessionID:    e.SessionID,
		AgentID:      e.AgentID,
		Model:        e.Model,
		SystemPrompt: e.SystemPrompt,
		UserPrompt:   e.UserPrompt,
		FullContext:  e.FullContext,
		RawOutput:    e.RawOutput,
		ParsedOutput: e.ParsedOutput,
		TokensIn:     *e.TokensIn,
		TokensOut:    *e.TokensOut,
		LatencyMs:    *e.LatencyMs,
	}
}

// ToolCall records one tool invocation. Input and output may be any JSON
// value.
type ToolCall struct {
	TraceID    string          `json:"trace_id" binding:"required"`
	StepID     string          `json:"step_id" binding:"required"`
	SessionID  string          `json:"session_id" binding:"required"`
	ToolName   string          `json:"tool_name" binding:"required"`
	InputJSON  json.RawMessage `json:"input_json"`
	OutputJSON json.RawMessage `json:"output_json"`
	Status     string          `json:"status" binding:"required,oneof=success error"`
	LatencyMs  *int64          `json:"latency_ms" binding:"required,min=0"`
	RetryCount *int            `json:"retry_count" binding:"omitempty,min=0"`
}

func (e *ToolCall) row() *models.ToolCall {
	c := &models.ToolCall{
		StepID:     e.StepID,
		SessionID:  e.SessionID,
		ToolName:   e.ToolName,
		InputJSON:  serialize(e.InputJSON),
		OutputJSON: serialize(e.OutputJSON),
		Status:     e.Status,
		LatencyMs:  *e.LatencyMs,
	}
	if e.RetryCount != nil {
		c.RetryCount = *e.RetryCount
	}
	return c
}

// serialize returns the compact text of raw, or nil when raw is absent or
// JSON null.
func serialize(raw json.RawMessage) *string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		s := string(trimmed)
		return &s
	}
	s := buf.String()
	return &s
}

// parseTime parses a timestamp that already passed the datetime rule.
func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
