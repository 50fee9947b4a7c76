package models

import (
	"time"

	"gorm.io/gorm"
)

// Session is one end-to-end agent run. ID is supplied by the agent that
// emitted the session_started event.
type Session struct {
	ID             string     `gorm:"primaryKey;size:128" json:"id"`
	TraceID        string     `gorm:"size:128;not null;index" json:"trace_id"`
	AgentID        string     `gorm:"size:128;not null;index:idx_sessions_agent_start,priority:1" json:"agent_id"`
	TriggerSource  string     `gorm:"size:64" json:"trigger_source"`
	Status         string     `gorm:"size:16;not null;default:running;index" json:"status"`
	StartTime      time.Time  `gorm:"not null;index" json:"start_time"`
	StartTimeEpoch int64      `gorm:"not null;index:idx_sessions_agent_start,priority:2" json:"-"`
	EndTime        *time.Time `json:"end_time"`
	TotalSteps     int64      `gorm:"default:0" json:"total_steps"`
	TotalTokensIn  int64      `gorm:"default:0" json:"total_tokens_in"`
	TotalTokensOut int64      `gorm:"default:0" json:"total_tokens_out"`
	ErrorCode      *string    `gorm:"size:128" json:"error_code"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BeforeCreate keeps the epoch column (Unix nanoseconds) used by range
// filters and aggregate queries in sync with StartTime. MAX() over a timestamp column scans back as text on sqlite.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	s.StartTime = s.StartTime.UTC()
	s.StartTimeEpoch = s.StartTime.UnixNano()
	return nil
}

// Terminal reports whether the session has left the running state.
func (s *Session) Terminal() bool {
	return s.Status != SessionRunning
}
