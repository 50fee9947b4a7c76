package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openclaw/agentops/internal/models"
)

// RecentCallsLimit caps the LLM and tool calls embedded in a session detail.
const RecentCallsLimit = 10

// SessionFilter narrows ListSessions. From and To bound start_time
// inclusively.
type SessionFilter struct {
	AgentID string
	Status  string
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

func (f SessionFilter) apply(q *gorm.DB) *gorm.DB {
	if f.AgentID != "" {
		q = q.Where("agent_id = ?", f.AgentID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("start_time_epoch >= ?", f.From.UnixNano())
	}
	if f.To != nil {
		q = q.Where("start_time_epoch <= ?", f.To.UnixNano())
	}
	return q
}

// SessionPage is one page of sessions plus the total matching the filter.
type SessionPage struct {
	Sessions []models.Session
	Total    int64
}

// ListSessions returns sessions matching f, newest first.
func (s *Store) ListSessions(ctx context.Context, f SessionFilter) (SessionPage, error) {
	var page SessionPage
	db := s.db.WithContext(ctx)

	if err := f.apply(db.Model(&models.Session{})).Count(&page.Total).Error; err != nil {
		return page, fmt.Errorf("store: count sessions: %w", err)
	}

	q := f.apply(db.Model(&models.Session{})).Order("start_time_epoch DESC").Order("id ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	page.Sessions = []models.Session{}
	if err := q.Find(&page.Sessions).Error; err != nil {
		return page, fmt.Errorf("store: list sessions: %w", err)
	}
	return page, nil
}

// Session returns the session row with id.
func (s *Store) Session(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "session", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	return &sess, nil
}

// Steps returns the steps of a session ordered by start time.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]models.Step, error) {
	steps := []models.Step{}
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("start_time ASC").Order("id ASC").
		Find(&steps).Error
	if err != nil {
		return nil, fmt.Errorf("store: list steps: %w", err)
	}
	return steps, nil
}

// SessionDetail is a session with its steps and most recent calls.
type SessionDetail struct {
	models.Session
	Steps     []models.Step     `json:"steps"`
	LlmCalls  []models.LlmCall  `json:"llm_calls"`
	ToolCalls []models.ToolCall `json:"tool_calls"`
}

// GetSession returns the session with id, all of its steps, and its
// RecentCallsLimit most recent LLM and tool calls.
func (s *Store) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &SessionDetail{Session: *sess}
	if d.Steps, err = s.Steps(ctx, id); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	d.LlmCalls = []models.LlmCall{}
	if err := db.Where("session_id = ?", id).
		Order("created_at DESC").Order("id ASC").
		Limit(RecentCallsLimit).Find(&d.LlmCalls).Error; err != nil {
		return nil, fmt.Errorf("store: recent llm calls: %w", err)
	}
	d.ToolCalls = []models.ToolCall{}
	if err := db.Where("session_id = ?", id).
		Order("created_at DESC").Order("id ASC").
		Limit(RecentCallsLimit).Find(&d.ToolCalls).Error; err != nil {
		return nil, fmt.Errorf("store: recent tool calls: %w", err)
	}
	return d, nil
}

// TimelineLlmCall is the per-step LLM call summary in a timeline.
type TimelineLlmCall struct {
	StepID    string `json:"-"`
	Model     string `json:"model"`
	TokensIn  int64  `json:"tokens_in"`
	TokensOut int64  `json:"tokens_out"`
	LatencyMs int64  `json:"latency_ms"`
}

// TimelineToolCall is the per-step tool call summary in a timeline.
type TimelineToolCall struct {
	StepID    string `json:"-"`
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

// SessionTimeline returns the ordered steps of a session. LLM steps carry
// their LLM calls, tool steps their tool calls, and all other steps empty
// lists.
func (s *Store) SessionTimeline(ctx context.Context, id string) (*Timeline, error) {
	sess, err := s.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.Steps(ctx, id)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var llm []TimelineLlmCall
	if err := db.Model(&models.LlmCall{}).
		Select("step_id, model, tokens_in, tokens_out, latency_ms").
		Where("session_id = ?", id).
		Order("created_at ASC").
		Scan(&llm).Error; err != nil {
		return nil, fmt.Errorf("store: timeline llm calls: %w", err)
	}
	var tools []TimelineToolCall
	if err := db.Model(&models.ToolCall{}).
		Select("step_id, tool_name, status, latency_ms").
		Where("session_id = ?", id).
		Order("created_at ASC").
		Scan(&tools).Error; err != nil {
		return nil, fmt.Errorf("store: timeline tool calls: %w", err)
	}

	llmByStep := make(map[string][]TimelineLlmCall)
	for _, c := range llm {
		llmByStep[c.StepID] = append(llmByStep[c.StepID], c)
	}
	toolsByStep := make(map[string][]TimelineToolCall)
	for _, c := range tools {
		toolsByStep[c.StepID] = append(toolsByStep[c.StepID], c)
	}

	tl := &Timeline{
		SessionID:  sess.ID,
		TraceID:    sess.TraceID,
		AgentID:    sess.AgentID,
		Status:     sess.Status,
		StartTime:  sess.StartTime,
		EndTime:    sess.EndTime,
		TotalSteps: sess.TotalSteps,
		Steps:      make([]TimelineStep, 0, len(steps)),
	}
	for _, st := range steps {
		ts := TimelineStep{
			StepID:     st.ID,
			StepType:   st.StepType,
			SkillName:  st.SkillName,
			Status:     st.Status,
			StartTime:  st.StartTime,
			EndTime:    st.EndTime,
			DurationMs: st.DurationMs,
			LlmCalls:   []TimelineLlmCall{},
			ToolCalls:  []TimelineToolCall{},
		}
		switch st.StepType {
		case models.StepLLM:
			if calls := llmByStep[st.ID]; calls != nil {
				ts.LlmCalls = calls
			}
		case models.StepTool:
			if calls := toolsByStep[st.ID]; calls != nil {
				ts.ToolCalls = calls
			}
		}
		tl.Steps = append(tl.Steps, ts)
	}
	return tl, nil
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

// SessionStats aggregates the calls and steps of a session.
func (s *Store) SessionStats(ctx context.Context, id string) (*SessionStats, error) {
	if _, err := s.Session(ctx, id); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	st := &SessionStats{SessionID: id, StepsByType: []StepCount{}}

	if err := db.Model(&models.LlmCall{}).
		Select("COUNT(*) AS total_calls, " +
			"COALESCE(SUM(tokens_in), 0) AS total_tokens_in, " +
			"COALESCE(SUM(tokens_out), 0) AS total_tokens_out, " +
			"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms").
		Where("session_id = ?", id).
		Scan(&st.LLM).Error; err != nil {
		return nil, fmt.Errorf("store: llm stats: %w", err)
	}
	if err := db.Model(&models.ToolCall{}).
		Select("COUNT(*) AS total_calls, COALESCE(AVG(latency_ms), 0) AS avg_latency_ms").
		Where("session_id = ?", id).
		Scan(&st.Tools).Error; err != nil {
		return nil, fmt.Errorf("store: tool stats: %w", err)
	}
	if err := db.Model(&models.Step{}).
		Select("step_type, status, COUNT(*) AS count").
		Where("session_id = ?", id).
		Group("step_type, status").
		Order("step_type ASC").Order("status ASC").
		Scan(&st.StepsByType).Error; err != nil {
		return nil, fmt.Errorf("store: steps by type: %w", err)
	}
	return st, nil
}
