package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillUsage is one rolled-up use of a named skill by an agent. Rows are
// derived from completed steps by the rollup job, never by ingest.
type SkillUsage struct {
	ID        string    `gorm:"primaryKey;size:36"`
	StepID    string    `gorm:"size:128;not null;uniqueIndex"`
	SessionID string    `gorm:"size:128;not null;index"`
	AgentID   string    `gorm:"size:128;not null;index:idx_skill_usages_agent_skill,priority:1"`
	SkillName string    `gorm:"size:128;not null;index:idx_skill_usages_agent_skill,priority:2"`
	SkillType string    `gorm:"size:16;not null"`
	LatencyMs int64     `gorm:"not null;default:0"`
	TokensIn  int64     `gorm:"not null;default:0"`
	TokensOut int64     `gorm:"not null;default:0"`
	CreatedAt time.Time

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (s *SkillUsage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
