package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LlmCall records a single model invocation. Rows are write-once.
type LlmCall struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	StepID       string    `gorm:"size:128;not null;index" json:"step_id"`
	SessionID    string    `gorm:"size:128;not null;index:idx_llm_calls_session_created,priority:1" json:"session_id"`
	AgentID      string    `gorm:"size:128;not null;index" json:"agent_id"`
	Model        string    `gorm:"size:128;not null" json:"model"`
	SystemPrompt *string   `gorm:"type:text" json:"system_prompt"`
	UserPrompt   *string   `gorm:"type:text" json:"user_prompt"`
	FullContext  *string   `gorm:"type:text" json:"full_context"`
	RawOutput    *string   `gorm:"type:text" json:"raw_output"`
	ParsedOutput *string   `gorm:"type:text" json:"parsed_output"`
	TokensIn     int64     `gorm:"not null;default:0" json:"tokens_in"`
	TokensOut    int64     `gorm:"not null;default:0" json:"tokens_out"`
	LatencyMs    int64     `gorm:"not null;default:0" json:"latency_ms"`
	CreatedAt    time.Time `gorm:"index:idx_llm_calls_session_created,priority:2" json:"created_at"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a random ID when the caller did not.
func (c *LlmCall) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ToolCall records a single tool invocation. Input and output payloads are
// stored as serialized JSON text.
type ToolCall struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	StepID     string    `gorm:"size:128;not null;index" json:"step_id"`
	SessionID  string    `gorm:"size:128;not null;index:idx_tool_calls_session_created,priority:1" json:"session_id"`
	ToolName   string    `gorm:"size:128;not null" json:"tool_name"`
	InputJSON  *string   `gorm:"column:input_json;type:text" json:"input_json"`
	OutputJSON *string   `gorm:"column:output_json;type:text" json:"output_json"`
	Status     string    `gorm:"size:16;not null" json:"status"`
	LatencyMs  int64     `gorm:"not null;default:0" json:"latency_ms"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"index:idx_tool_calls_session_created,priority:2" json:"created_at"`

	Session *Session `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a random ID when the caller did not.
func (c *ToolCall) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
