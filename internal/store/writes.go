package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openclaw/agentops/internal/models"
)

// CreateSession inserts sess with status running. A duplicate id is a
// ConflictError.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	sess.Status = models.SessionRunning
	conflict := &ConflictError{Resource: "session", ID: sess.ID, Reason: "already exists"}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := sessionExists(tx, sess.ID)
		if err != nil {
			return fmt.Errorf("store: create session: %w", err)
		}
		if exists {
			return conflict
		}
		if err := tx.Create(sess).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflict
			}
			return fmt.Errorf("store: create session: %w", err)
		}
		return nil
	})
}

// SessionCompletion carries the fields a session_completed event may set.
// Nil pointers leave the stored value untouched.
type SessionCompletion struct {
	ID             string
	Status         string
	EndTime        time.Time
	TotalSteps     *int64
	TotalTokensIn  *int64
	TotalTokensOut *int64
	ErrorCode      *string
}

// CompleteSession moves a running session to a terminal status and returns
// the updated row. Only the first completion wins: later ones get a
// ConflictError because the status never leaves a terminal value.
func (s *Store) CompleteSession(ctx context.Context, c SessionCompletion) (*models.Session, error) {
	if c.Status == models.SessionRunning || !models.ValidSessionStatus(c.Status) {
		return nil, fmt.Errorf("store: complete session: invalid status %q", c.Status)
	}

	updates := map[string]interface{}{
		"status":   c.Status,
		"end_time": c.EndTime.UTC(),
	}
	if c.TotalSteps != nil {
		updates["total_steps"] = *c.TotalSteps
	}
	if c.TotalTokensIn != nil {
		updates["total_tokens_in"] = *c.TotalTokensIn
	}
	if c.TotalTokensOut != nil {
		updates["total_tokens_out"] = *c.TotalTokensOut
	}
	if c.ErrorCode != nil {
		updates["error_code"] = *c.ErrorCode
	}

	var sess models.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Session{}).
			Where("id = ? AND status = ?", c.ID, models.SessionRunning).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("store: complete session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			exists, err := sessionExists(tx, c.ID)
			if err != nil {
				return fmt.Errorf("store: complete session: %w", err)
			}
			if !exists {
				return &NotFoundError{Resource: "session", ID: c.ID}
			}
			return &ConflictError{Resource: "session", ID: c.ID, Reason: "already completed"}
		}
		return tx.First(&sess, "id = ?", c.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateStep inserts step with status running under an existing session.
func (s *Store) CreateStep(ctx context.Context, step *models.Step) error {
	step.Status = models.StepRunning
	if step.StartTime.IsZero() {
		step.StartTime = time.Now()
	}
	step.StartTime = step.StartTime.UTC()
	conflict := &ConflictError{Resource: "step", ID: step.ID, Reason: "already exists"}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := sessionExists(tx, step.SessionID)
		if err != nil {
			return fmt.Errorf("store: create step: %w", err)
		}
		if !exists {
			return &NotFoundError{Resource: "session", ID: step.SessionID}
		}
		var n int64
		if err := tx.Model(&models.Step{}).Where("id = ?", step.ID).Count(&n).Error; err != nil {
			return fmt.Errorf("store: create step: %w", err)
		}
		if n > 0 {
			return conflict
		}
		if err := tx.Create(step).Error; err != nil {
			switch {
			case errors.Is(err, gorm.ErrDuplicatedKey):
				return conflict
			case errors.Is(err, gorm.ErrForeignKeyViolated):
				return &NotFoundError{Resource: "session", ID: step.SessionID}
			}
			return fmt.Errorf("store: create step: %w", err)
		}
		return nil
	})
}

// StepCompletion carries the fields a step_completed event may set. A nil
// DurationMs is derived from the stored start time and EndTime.
type StepCompletion struct {
	ID           string
	SessionID    string
	Status       string
	EndTime      time.Time
	DurationMs   *int64
	ErrorMessage *string
}

// CompleteStep moves a running step to success or error and returns the
// updated row.
func (s *Store) CompleteStep(ctx context.Context, c StepCompletion) (*models.Step, error) {
	if c.Status != models.StepSuccess && c.Status != models.StepError {
		return nil, fmt.Errorf("store: complete step: invalid status %q", c.Status)
	}

	var step models.Step
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND session_id = ?", c.ID, c.SessionID).First(&step).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "step", ID: c.ID}
		}
		if err != nil {
			return fmt.Errorf("store: complete step: %w", err)
		}
		if step.Status != models.StepRunning {
			return &ConflictError{Resource: "step", ID: c.ID, Reason: "already completed"}
		}

		duration := c.DurationMs
		if duration == nil {
			d := c.EndTime.Sub(step.StartTime).Milliseconds()
			if d < 0 {
				d = 0
			}
			duration = &d
		}
		updates := map[string]interface{}{
			"status":      c.Status,
			"end_time":    c.EndTime.UTC(),
			"duration_ms": *duration,
		}
		if c.ErrorMessage != nil {
			updates["error_message"] = *c.ErrorMessage
		}

		res := tx.Model(&models.Step{}).
			Where("id = ? AND status = ?", c.ID, models.StepRunning).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("store: complete step: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &ConflictError{Resource: "step", ID: c.ID, Reason: "already completed"}
		}
		return tx.First(&step, "id = ?", c.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// CreateLlmCall inserts a write-once LLM call row under an existing session.
func (s *Store) CreateLlmCall(ctx context.Context, call *models.LlmCall) error {
	return s.createChild(ctx, "llm call", call.SessionID, call)
}

// CreateToolCall inserts a write-once tool call row under an existing session.
func (s *Store) CreateToolCall(ctx context.Context, call *models.ToolCall) error {
	return s.createChild(ctx, "tool call", call.SessionID, call)
}

func (s *Store) createChild(ctx context.Context, what, sessionID string, row interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := sessionExists(tx, sessionID)
		if err != nil {
			return fmt.Errorf("store: create %s: %w", what, err)
		}
		if !exists {
			return &NotFoundError{Resource: "session", ID: sessionID}
		}
		if err := tx.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return &NotFoundError{Resource: "session", ID: sessionID}
			}
			return fmt.Errorf("store: create %s: %w", what, err)
		}
		return nil
	})
}

// DeleteSession removes a session and every row that references it.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := sessionExists(tx, id)
		if err != nil {
			return fmt.Errorf("store: delete session: %w", err)
		}
		if !exists {
			return &NotFoundError{Resource: "session", ID: id}
		}
		for _, child := range []interface{}{&models.SkillUsage{}, &models.ToolCall{}, &models.LlmCall{}, &models.Step{}} {
			if err := tx.Where("session_id = ?", id).Delete(child).Error; err != nil {
				return fmt.Errorf("store: delete session children: %w", err)
			}
		}
		if err := tx.Delete(&models.Session{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("store: delete session: %w", err)
		}
		return nil
	})
}
