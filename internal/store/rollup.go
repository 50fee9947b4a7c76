package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openclaw/agentops/internal/models"
)

// rollupBatchSize bounds the rows per INSERT when rolling up skill usage.
const rollupBatchSize = 200

type skillCandidate struct {
	StepID     string
	SessionID  string
	AgentID    string
	SkillName  string
	StepType   string
	DurationMs *int64
	TokensIn   int64
	TokensOut  int64
}

// RollupSkillUsage inserts one SkillUsage row per completed step that names
// a skill and has not been rolled up yet. Tokens are the sums over the
// step's LLM calls. It returns the number of rows inserted and is safe to
// run concurrently with itself.
func (s *Store) RollupSkillUsage(ctx context.Context) (int64, error) {
	var cands []skillCandidate
	err := s.db.WithContext(ctx).Table("steps").
		Select("steps.id AS step_id, steps.session_id AS session_id, sessions.agent_id AS agent_id, "+
			"steps.skill_name AS skill_name, steps.step_type AS step_type, steps.duration_ms AS duration_ms, "+
			"COALESCE(SUM(llm_calls.tokens_in), 0) AS tokens_in, "+
			"COALESCE(SUM(llm_calls.tokens_out), 0) AS tokens_out").
		Joins("JOIN sessions ON sessions.id = steps.session_id").
		Joins("LEFT JOIN skill_usages ON skill_usages.step_id = steps.id").
		Joins("LEFT JOIN llm_calls ON llm_calls.step_id = steps.id").
		Where("steps.status <> ?", models.StepRunning).
		Where("steps.skill_name IS NOT NULL AND steps.skill_name <> ''").
		Where("skill_usages.id IS NULL").
		Group("steps.id, steps.session_id, sessions.agent_id, steps.skill_name, steps.step_type, steps.duration_ms").
		Scan(&cands).Error
	if err != nil {
		return 0, fmt.Errorf("store: rollup candidates: %w", err)
	}
	if len(cands) == 0 {
		return 0, nil
	}

	usages := make([]models.SkillUsage, 0, len(cands))
	for _, c := range cands {
		u := models.SkillUsage{
			StepID:    c.StepID,
			SessionID: c.SessionID,
			AgentID:   c.AgentID,
			SkillName: c.SkillName,
			SkillType: c.StepType,
			TokensIn:  c.TokensIn,
			TokensOut: c.TokensOut,
		}
		if c.DurationMs != nil {
			u.LatencyMs = *c.DurationMs
		}
		usages = append(usages, u)
	}

	var inserted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "step_id"}},
			DoNothing: true,
		}).CreateInBatches(&usages, rollupBatchSize)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store: rollup insert: %w", err)
	}
	return inserted, nil
}
