package store

import (
	"context"
	"fmt"
	"time"

	"github.com/openclaw/agentops/internal/models"
)

// RecentSessionsLimit caps the sessions embedded in an agent detail.
const RecentSessionsLimit = 10

// AgentSummary aggregates the sessions of one agent. TotalSessions counts
// only success and failed sessions and is the SuccessRate denominator.
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

// agentColumns is the per-agent aggregation. The token totals take the
// largest session counter, not a sum.
const agentColumns = "agent_id, COUNT(*) AS session_count, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS success_count, " +
	"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed_count, " +
	"MAX(start_time_epoch) AS last_active_epoch, " +
	"COALESCE(MAX(total_tokens_in), 0) AS total_tokens_in, " +
	"COALESCE(MAX(total_tokens_out), 0) AS total_tokens_out"

type agentRow struct {
	AgentID         string
	SessionCount    int64
	SuccessCount    int64
	FailedCount     int64
	LastActiveEpoch int64
	TotalTokensIn   int64
	TotalTokensOut  int64
}

func (r agentRow) summary() AgentSummary {
	a := AgentSummary{
		AgentID:        r.AgentID,
		SessionCount:   r.SessionCount,
		SuccessCount:   r.SuccessCount,
		FailedCount:    r.FailedCount,
		TotalSessions:  r.SuccessCount + r.FailedCount,
		LastActive:     time.Unix(0, r.LastActiveEpoch).UTC(),
		TotalTokensIn:  r.TotalTokensIn,
		TotalTokensOut: r.TotalTokensOut,
	}
	a.SuccessRate = SuccessRate(r.SuccessCount, r.FailedCount)
	return a
}

// SuccessRate is success/(success+failed), or 0 when both are zero.
func SuccessRate(success, failed int64) float64 {
	if success+failed == 0 {
		return 0
	}
	return float64(success) / float64(success+failed)
}

// ListAgents returns one summary per agent, most recently active first.
func (s *Store) ListAgents(ctx context.Context) ([]AgentSummary, error) {
	var rows []agentRow
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Select(agentColumns, models.SessionSuccess, models.SessionFailed).
		Group("agent_id").
		Order("last_active_epoch DESC").Order("agent_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	out := make([]AgentSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.summary())
	}
	return out, nil
}

// GetAgent returns the summary of one agent. An agent with no sessions is
// a NotFoundError.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*AgentDetail, error) {
	db := s.db.WithContext(ctx)

	var rows []agentRow
	if err := db.Model(&models.Session{}).
		Select(agentColumns, models.SessionSuccess, models.SessionFailed).
		Where("agent_id = ?", agentID).
		Group("agent_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: get agent: %w", err)
	}
	if len(rows) == 0 {
		return nil, &NotFoundError{Resource: "agent", ID: agentID}
	}
	d := &AgentDetail{AgentSummary: rows[0].summary()}

	if err := db.Model(&models.Session{}).
		Select("COALESCE(AVG(total_steps), 0)").
		Where("agent_id = ? AND end_time IS NOT NULL", agentID).
		Scan(&d.AvgStepsPerSession).Error; err != nil {
		return nil, fmt.Errorf("store: agent avg steps: %w", err)
	}

	d.RecentSessions = []RecentSession{}
	if err := db.Model(&models.Session{}).
		Select("id, status, start_time, total_steps, total_tokens_in, total_tokens_out").
		Where("agent_id = ?", agentID).
		Order("start_time_epoch DESC").Order("id ASC").
		Limit(RecentSessionsLimit).
		Scan(&d.RecentSessions).Error; err != nil {
		return nil, fmt.Errorf("store: agent recent sessions: %w", err)
	}
	return d, nil
}

// AgentSkills returns rolled-up skill usage for one agent, most used first.
func (s *Store) AgentSkills(ctx context.Context, agentID string) ([]SkillStat, error) {
	out := []SkillStat{}
	err := s.db.WithContext(ctx).Model(&models.SkillUsage{}).
		Select("skill_name, skill_type, COUNT(*) AS usage_count, " +
			"COALESCE(AVG(latency_ms), 0) AS avg_latency_ms, " +
			"COALESCE(SUM(tokens_in), 0) AS total_tokens_in, " +
			"COALESCE(SUM(tokens_out), 0) AS total_tokens_out").
		Where("agent_id = ?", agentID).
		Group("skill_name, skill_type").
		Order("usage_count DESC").Order("skill_name ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("store: agent skills: %w", err)
	}
	return out, nil
}
