package client

import "time"

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime,omitempty"`
	Version   string    `json:"version,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// MemoryStats reports server runtime memory in bytes.
type MemoryStats struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
	Goroutines int    `json:"goroutines"`
}

// ServiceStatus reports one server dependency.
type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Counts holds store table sizes.
type Counts struct {
	Sessions int64 `json:"total_sessions"`
	Steps    int64 `json:"total_steps"`
}

// DetailedHealth is the body of GET /health/detailed.
type DetailedHealth struct {
	HealthStatus
	Memory   MemoryStats              `json:"memory"`
	Services map[string]ServiceStatus `json:"services"`
	Stats    Counts                   `json:"stats"`
}

// Session is one agent run.
type Session struct {
	ID             string     `json:"id"`
	TraceID        string     `json:"trace_id"`
	AgentID        string     `json:"agent_id"`
	TriggerSource  string     `json:"trigger_source"`
	Status         string     `json:"status"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	TotalSteps     int64      `json:"total_steps"`
	TotalTokensIn  int64      `json:"total_tokens_in"`
	TotalTokensOut int64      `json:"total_tokens_out"`
	ErrorCode      *string    `json:"error_code"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Step is one unit of work inside a session.
type Step struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	TraceID      string     `json:"trace_id"`
	StepType     string     `json:"step_type"`
	SkillName    string     `json:"skill_name"`
	Status       string     `json:"status"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	DurationMs   *int64     `json:"duration_ms"`
	ErrorMessage *string    `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LlmCall is a recorded model invocation.
type LlmCall struct {
	ID           string    `json:"id"`
	StepID       string    `json:"step_id"`
	SessionID    string    `json:"session_id"`
	AgentID      string    `json:"agent_id"`
	Model        string    `json:"model"`
	SystemPrompt *string   `json:"system_prompt"`
	UserPrompt   *string   `json:"user_prompt"`
	FullContext  *string   `json:"full_context"`
	RawOutput    *string   `json:"raw_output"`
	ParsedOutput *string   `json:"parsed_output"`
	TokensIn     int64     `json:"tokens_in"`
	TokensOut    int64     `json:"tokens_out"`
	LatencyMs    int64     `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToolCall is a recorded tool invocation. Input and output are the
// serialized JSON text the server stored.
type ToolCall struct {
	ID         string    `json:"id"`
	StepID     string    `json:"step_id"`
	SessionID  string    `json:"session_id"`
	ToolName   string    `json:"tool_name"`
	InputJSON  *string   `json:"input_json"`
	OutputJSON *string   `json:"output_json"`
	Status     string    `json:"status"`
	LatencyMs  int64     `json:"latency_ms"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// SessionList is one page of sessions.
type SessionList struct {
	Data       []Session  `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// SessionDetail is a session with its steps and most recent calls.
type SessionDetail struct {
	Session
	Steps     []Step     `json:"steps"`
	LlmCalls  []LlmCall  `json:"llm_calls"`
	ToolCalls []ToolCall `json:"tool_calls"`
}

// TimelineLlmCall is the per-step LLM call summary in a timeline.
type TimelineLlmCall struct {
	Model     string `json:"model"`
	TokensIn  int64  `json:"tokens_in"`
	TokensOut int64  `json:"tokens_out"`
	LatencyMs int64  `json:"latency_ms"`
}

// TimelineToolCall is the per-step tool call summary in a timeline.
type TimelineToolCall struct {
	ToolName  string `json:"tool_name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

// TimelineStep is one step of a session timeline.
type TimelineStep struct {
	StepID     string             `json:"step_id"`
	StepType   string             `json:"step_type"`
	SkillName  string             `json:"skill_name"`
	Status     string             `json:"status"`
	StartTime  time.Time          `json:"start_time"`
	EndTime    *time.Time         `json:"end_time"`
	DurationMs *int64             `json:"duration_ms"`
	LlmCalls   []TimelineLlmCall  `json:"llm_calls"`
	ToolCalls  []TimelineToolCall `json:"tool_calls"`
}

// Timeline is a session header plus its steps in start order.
type Timeline struct {
	SessionID  string         `json:"session_id"`
	TraceID    string         `json:"trace_id"`
	AgentID    string         `json:"agent_id"`
	Status     string         `json:"status"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time"`
	TotalSteps int64          `json:"total_steps"`
	Steps      []TimelineStep `json:"timeline"`
}

// LlmStats aggregates the LLM calls of a session.
type LlmStats struct {
	TotalCalls     int64   `json:"total_calls"`
	TotalTokensIn  int64   `json:"total_tokens_in"`
	TotalTokensOut int64   `json:"total_tokens_out"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
}

// ToolStats aggregates the tool calls of a session.
type ToolStats struct {
	TotalCalls   int64   `json:"total_calls"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// StepCount is the number of steps with a given type and status.
type StepCount struct {
	StepType string `json:"step_type"`
	Status   string `json:"status"`
	Count    int64  `json:"count"`
}

// SessionStats is the aggregate view of one session.
type SessionStats struct {
	SessionID   string      `json:"session_id"`
	LLM         LlmStats    `json:"llm"`
	Tools       ToolStats   `json:"tools"`
	StepsByType []StepCount `json:"steps_by_type"`
}

// AgentSummary aggregates the sessions of one agent.
type AgentSummary struct {
	AgentID        string    `json:"agent_id"`
	SessionCount   int64     `json:"session_count"`
	SuccessCount   int64     `json:"success_count"`
	FailedCount    int64     `json:"failed_count"`
	TotalSessions  int64     `json:"total_sessions"`
	SuccessRate    float64   `json:"success_rate"`
	LastActive     time.Time `json:"last_active"`
	TotalTokensIn  int64     `json:"total_tokens_in"`
	TotalTokensOut int64     `json:"total_tokens_out"`
}

// RecentSession is the short session form listed in an agent detail.
type RecentSession struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	StartTime      time.Time `json:"start_time"`
	TotalSteps     int64     `json:"total_steps"`
	TotalTokensIn  int64     `json:"total_tokens_in"`
	TotalTokensOut int64     `json:"total_tokens_out"`
}

// AgentDetail is one agent's summary plus its recent sessions.
type AgentDetail struct {
	AgentSummary
	AvgStepsPerSession float64         `json:"avg_steps_per_session"`
	RecentSessions     []RecentSession `json:"recent_sessions"`
}

// SkillStat aggregates rolled-up usage of one skill.
type SkillStat struct {
	SkillName      string  `json:"skill_name"`
	SkillType      string  `json:"skill_type"`
	UsageCount     int64   `json:"usage_count"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	TotalTokensIn  int64   `json:"total_tokens_in"`
	TotalTokensOut int64   `json:"total_tokens_out"`
}

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
