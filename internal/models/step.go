package models

import "time"

// Step is one unit of work inside a session.
type Step struct {
	ID           string     `gorm:"primaryKey;size:128" json:"id"`
	SessionID    string     `gorm:"size:128;not null;index:idx_steps_session_start,priority:1" json:"session_id"`
	TraceID      string     `gorm:"size:128;index" json:"trace_id"`
	StepType     string     `gorm:"size:16;not null" json:"step_type"`
	SkillName    string     `gorm:"size:128;default:''" json:"skill_name"`
	Status       string     `gorm:"size:16;not null;default:running" json:"status"`
	StartTime    time.Time  `gorm:"not null;index:idx_steps_session_start,priority:2" json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	DurationMs   *int64     `json:"duration_ms"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}
