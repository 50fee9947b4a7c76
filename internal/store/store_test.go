package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/agentops/internal/db/dbtest"
	"github.com/openclaw/agentops/internal/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	return New(dbtest.Open(t))
}

func ptr[T any](v T) *T { return &v }

func startSession(t *testing.T, s *Store, id, agent string, start time.Time) {
	t.Helper()
	require.NoError(t, s.CreateSession(context.Background(), &models.Session{
		ID: id, TraceID: "t-" + id, AgentID: agent, TriggerSource: "cron", StartTime: start,
	}))
}

func completeSession(t *testing.T, s *Store, id, status string) *models.Session {
	t.Helper()
	sess, err := s.CompleteSession(context.Background(), SessionCompletion{ID: id, Status: status, EndTime: t0.Add(time.Hour)})
	require.NoError(t, err)
	return sess
}

func startStep(t *testing.T, s *Store, sessionID, stepID, typ, skill string, start time.Time) {
	t.Helper()
	require.NoError(t, s.CreateStep(context.Background(), &models.Step{
		ID: stepID, SessionID: sessionID, TraceID: "t-" + sessionID, StepType: typ, SkillName: skill, StartTime: start,
	}))
}

func TestPing(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestCreateSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)

	got, err := s.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, got.Status)
	assert.True(t, got.StartTime.Equal(t0), "start_time = %v, want %v", got.StartTime, t0)
	assert.Nil(t, got.EndTime)

	err = s.CreateSession(ctx, &models.Session{ID: "s1", TraceID: "t", AgentID: "agent-a", StartTime: t0})
	assert.ErrorIs(t, err, ErrConflict)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Session already exists", ce.Message())
}

func TestCompleteSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)

	sess, err := s.CompleteSession(ctx, SessionCompletion{
		ID: "s1", Status: models.SessionFailed, EndTime: t0.Add(time.Minute),
		TotalSteps: ptr(int64(3)), TotalTokensIn: ptr(int64(100)), ErrorCode: ptr("E_TIMEOUT"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, sess.Status)
	assert.Equal(t, int64(3), sess.TotalSteps)
	assert.Equal(t, int64(100), sess.TotalTokensIn)
	assert.Equal(t, int64(0), sess.TotalTokensOut)
	require.NotNil(t, sess.ErrorCode)
	assert.Equal(t, "E_TIMEOUT", *sess.ErrorCode)
	require.NotNil(t, sess.EndTime)
	assert.True(t, sess.EndTime.Equal(t0.Add(time.Minute)))

	// Terminal status never reverts.
	_, err = s.CompleteSession(ctx, SessionCompletion{ID: "s1", Status: models.SessionSuccess, EndTime: t0})
	assert.ErrorIs(t, err, ErrConflict)
	got, err := s.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, got.Status)

	_, err = s.CompleteSession(ctx, SessionCompletion{ID: "missing", Status: models.SessionSuccess, EndTime: t0})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CompleteSession(ctx, SessionCompletion{ID: "s1", Status: models.SessionRunning, EndTime: t0})
	assert.Error(t, err)
}

func TestCreateStep(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.CreateStep(ctx, &models.Step{ID: "st1", SessionID: "missing", StepType: models.StepLLM, StartTime: t0})
	assert.ErrorIs(t, err, ErrNotFound)

	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)

	err = s.CreateStep(ctx, &models.Step{ID: "st1", SessionID: "s1", StepType: models.StepLLM, StartTime: t0})
	assert.ErrorIs(t, err, ErrConflict)

	step := &models.Step{ID: "st2", SessionID: "s1", StepType: models.StepTool}
	require.NoError(t, s.CreateStep(ctx, step))
	assert.False(t, step.StartTime.IsZero(), "missing start_time should default to now")
}

func TestCompleteStep(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)
	startStep(t, s, "s1", "st2", models.StepTool, "", t0)

	t.Run("derives duration", func(t *testing.T) {
		step, err := s.CompleteStep(ctx, StepCompletion{ID: "st1", SessionID: "s1", Status: models.StepSuccess, EndTime: t0.Add(1500 * time.Millisecond)})
		require.NoError(t, err)
		require.NotNil(t, step.DurationMs)
		assert.Equal(t, int64(1500), *step.DurationMs)
		assert.Equal(t, models.StepSuccess, step.Status)
	})

	t.Run("explicit duration and error", func(t *testing.T) {
		step, err := s.CompleteStep(ctx, StepCompletion{
			ID: "st2", SessionID: "s1", Status: models.StepError, EndTime: t0,
			DurationMs: ptr(int64(42)), ErrorMessage: ptr("boom"),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), *step.DurationMs)
		assert.Equal(t, "boom", *step.ErrorMessage)
	})

	t.Run("already completed", func(t *testing.T) {
		_, err := s.CompleteStep(ctx, StepCompletion{ID: "st1", SessionID: "s1", Status: models.StepError, EndTime: t0})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("wrong session", func(t *testing.T) {
		_, err := s.CompleteStep(ctx, StepCompletion{ID: "st1", SessionID: "other", Status: models.StepSuccess, EndTime: t0})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCreateCalls(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	llm := &models.LlmCall{StepID: "st1", SessionID: "missing", AgentID: "a", Model: "m"}
	assert.ErrorIs(t, s.CreateLlmCall(ctx, llm), ErrNotFound)

	startSession(t, s, "s1", "agent-a", t0)
	llm.SessionID = "s1"
	require.NoError(t, s.CreateLlmCall(ctx, llm))
	assert.Len(t, llm.ID, 36)

	tool := &models.ToolCall{StepID: "st1", SessionID: "s1", ToolName: "search", Status: models.StepSuccess}
	require.NoError(t, s.CreateToolCall(ctx, tool))
	assert.NotEmpty(t, tool.ID)
	assert.Equal(t, 0, tool.RetryCount)
}

func TestListSessions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		agent := "agent-a"
		if i%2 == 1 {
			agent = "agent-b"
		}
		startSession(t, s, fmt.Sprintf("s%d", i), agent, t0.Add(time.Duration(i)*time.Hour))
	}
	completeSession(t, s, "s0", models.SessionSuccess)

	t.Run("newest first", func(t *testing.T) {
		page, err := s.ListSessions(ctx, SessionFilter{Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		require.Len(t, page.Sessions, 5)
		assert.Equal(t, "s4", page.Sessions[0].ID)
		assert.Equal(t, "s0", page.Sessions[4].ID)
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := s.ListSessions(ctx, SessionFilter{Limit: 2, Offset: 4})
		require.NoError(t, err)
		assert.Equal(t, int64(5), page.Total)
		assert.Len(t, page.Sessions, 1)
	})

	t.Run("agent filter", func(t *testing.T) {
		page, err := s.ListSessions(ctx, SessionFilter{AgentID: "agent-b", Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		for _, sess := range page.Sessions {
			assert.Equal(t, "agent-b", sess.AgentID)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		page, err := s.ListSessions(ctx, SessionFilter{Status: models.SessionSuccess, Limit: 50})
		require.NoError(t, err)
		require.Len(t, page.Sessions, 1)
		assert.Equal(t, "s0", page.Sessions[0].ID)
	})

	t.Run("inclusive time range", func(t *testing.T) {
		from, to := t0.Add(time.Hour), t0.Add(3*time.Hour)
		page, err := s.ListSessions(ctx, SessionFilter{From: &from, To: &to, Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		for _, sess := range page.Sessions {
			assert.False(t, sess.StartTime.Before(from) || sess.StartTime.After(to), "start_time %v outside range", sess.StartTime)
		}
	})

	t.Run("empty", func(t *testing.T) {
		page, err := s.ListSessions(ctx, SessionFilter{AgentID: "nobody", Limit: 50})
		require.NoError(t, err)
		assert.NotNil(t, page.Sessions)
		assert.Empty(t, page.Sessions)
	})
}

func TestGetSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st2", models.StepTool, "", t0.Add(time.Second))
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)
	for i := 0; i < RecentCallsLimit+2; i++ {
		require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "st1", SessionID: "s1", AgentID: "agent-a", Model: "m"}))
	}
	require.NoError(t, s.CreateToolCall(ctx, &models.ToolCall{StepID: "st2", SessionID: "s1", ToolName: "grep", Status: "success"}))

	d, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", d.ID)
	require.Len(t, d.Steps, 2)
	assert.Equal(t, "st1", d.Steps[0].ID)
	assert.Equal(t, "st2", d.Steps[1].ID)
	assert.Len(t, d.LlmCalls, RecentCallsLimit)
	assert.Len(t, d.ToolCalls, 1)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionTimeline(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "llm-step", models.StepLLM, "", t0)
	startStep(t, s, "s1", "tool-step", models.StepTool, "", t0.Add(time.Second))
	startStep(t, s, "s1", "route-step", models.StepRouting, "", t0.Add(2*time.Second))
	require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "llm-step", SessionID: "s1", AgentID: "agent-a", Model: "gpt", TokensIn: 10, TokensOut: 5, LatencyMs: 300}))
	require.NoError(t, s.CreateToolCall(ctx, &models.ToolCall{StepID: "tool-step", SessionID: "s1", ToolName: "grep", Status: "error", LatencyMs: 20}))
	// Calls attached to a routing step are not shown in the timeline.
	require.NoError(t, s.CreateToolCall(ctx, &models.ToolCall{StepID: "route-step", SessionID: "s1", ToolName: "x", Status: "success"}))

	tl, err := s.SessionTimeline(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "agent-a", tl.AgentID)
	require.Len(t, tl.Steps, 3)

	assert.Equal(t, "llm-step", tl.Steps[0].StepID)
	require.Len(t, tl.Steps[0].LlmCalls, 1)
	assert.Equal(t, TimelineLlmCall{StepID: "llm-step", Model: "gpt", TokensIn: 10, TokensOut: 5, LatencyMs: 300}, tl.Steps[0].LlmCalls[0])
	assert.Empty(t, tl.Steps[0].ToolCalls)

	require.Len(t, tl.Steps[1].ToolCalls, 1)
	assert.Equal(t, "grep", tl.Steps[1].ToolCalls[0].ToolName)
	assert.Empty(t, tl.Steps[1].LlmCalls)

	assert.NotNil(t, tl.Steps[2].ToolCalls)
	assert.Empty(t, tl.Steps[2].ToolCalls)

	_, err = s.SessionTimeline(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStats(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)
	startStep(t, s, "s1", "st2", models.StepLLM, "", t0)
	startStep(t, s, "s1", "st3", models.StepTool, "", t0)
	_, err := s.CompleteStep(ctx, StepCompletion{ID: "st1", SessionID: "s1", Status: models.StepSuccess, EndTime: t0})
	require.NoError(t, err)
	require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "st1", SessionID: "s1", AgentID: "agent-a", Model: "m", TokensIn: 10, TokensOut: 1, LatencyMs: 100}))
	require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "st2", SessionID: "s1", AgentID: "agent-a", Model: "m", TokensIn: 20, TokensOut: 3, LatencyMs: 200}))

	st, err := s.SessionStats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, LlmStats{TotalCalls: 2, TotalTokensIn: 30, TotalTokensOut: 4, AvgLatencyMs: 150}, st.LLM)
	assert.Equal(t, ToolStats{}, st.Tools)
	assert.Equal(t, []StepCount{
		{StepType: models.StepLLM, Status: models.StepRunning, Count: 1},
		{StepType: models.StepLLM, Status: models.StepSuccess, Count: 1},
		{StepType: models.StepTool, Status: models.StepRunning, Count: 1},
	}, st.StepsByType)

	_, err = s.SessionStats(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAgents(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "a1", "agent-a", t0)
	startSession(t, s, "a2", "agent-a", t0.Add(time.Hour))
	startSession(t, s, "a3", "agent-a", t0.Add(2*time.Hour))
	startSession(t, s, "b1", "agent-b", t0.Add(5*time.Hour))
	completeSession(t, s, "a1", models.SessionSuccess)
	_, err := s.CompleteSession(ctx, SessionCompletion{ID: "a2", Status: models.SessionFailed, EndTime: t0, TotalSteps: ptr(int64(4)), TotalTokensIn: ptr(int64(70))})
	require.NoError(t, err)
	completeSession(t, s, "a3", models.SessionCancelled)

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "agent-b", agents[0].AgentID, "most recently active first")
	assert.Equal(t, 0.0, agents[0].SuccessRate)

	a := agents[1]
	assert.Equal(t, int64(3), a.SessionCount)
	assert.Equal(t, int64(1), a.SuccessCount)
	assert.Equal(t, int64(1), a.FailedCount)
	assert.Equal(t, int64(2), a.TotalSessions)
	assert.InDelta(t, 0.5, a.SuccessRate, 1e-9)
	assert.True(t, a.LastActive.Equal(t0.Add(2*time.Hour)))
	assert.Equal(t, int64(70), a.TotalTokensIn)

	d, err := s.GetAgent(ctx, "agent-a")
	require.NoError(t, err)
	assert.Equal(t, a, d.AgentSummary)
	assert.InDelta(t, 4.0/3.0, d.AvgStepsPerSession, 1e-9)
	require.Len(t, d.RecentSessions, 3)
	assert.Equal(t, "a3", d.RecentSessions[0].ID)

	_, err = s.GetAgent(ctx, "unknown-agent")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Agent not found", nf.Message())
}

func TestSuccessRate(t *testing.T) {
	tests := []struct {
		success, failed int64
		want            float64
	}{
		{0, 0, 0},
		{3, 0, 1},
		{0, 2, 0},
		{1, 3, 0.25},
	}
	for _, tt := range tests {
		got := SuccessRate(tt.success, tt.failed)
		assert.InDelta(t, tt.want, got, 1e-9, "SuccessRate(%d, %d)", tt.success, tt.failed)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestAgentSkills(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	gdb := s.DB()
	for i, lat := range []int64{100, 300} {
		require.NoError(t, gdb.Create(&models.SkillUsage{
			StepID: fmt.Sprintf("st%d", i), SessionID: "s1", AgentID: "agent-a",
			SkillName: "search", SkillType: models.StepTool, LatencyMs: lat, TokensIn: 5,
		}).Error)
	}

	skills, err := s.AgentSkills(ctx, "agent-a")
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, SkillStat{SkillName: "search", SkillType: models.StepTool, UsageCount: 2, AvgLatencyMs: 200, TotalTokensIn: 10}, skills[0])

	none, err := s.AgentSkills(ctx, "agent-b")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)
	require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "st1", SessionID: "s1", AgentID: "agent-a", Model: "m"}))
	require.NoError(t, s.CreateToolCall(ctx, &models.ToolCall{StepID: "st1", SessionID: "s1", ToolName: "t", Status: "success"}))

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	_, err := s.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)

	var n int64
	for _, m := range []interface{}{&models.Step{}, &models.LlmCall{}, &models.ToolCall{}} {
		require.NoError(t, s.DB().Model(m).Count(&n).Error)
		assert.Zero(t, n)
	}

	assert.ErrorIs(t, s.DeleteSession(ctx, "s1"), ErrNotFound)
}

func TestCounts(t *testing.T) {
	s := newStore(t)
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "", t0)
	c, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Counts{Sessions: 1, Steps: 1}, c)
}

func TestRollupSkillUsage(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	startSession(t, s, "s1", "agent-a", t0)
	startStep(t, s, "s1", "st1", models.StepLLM, "summarize", t0)
	startStep(t, s, "s1", "st2", models.StepTool, "search", t0)
	startStep(t, s, "s1", "st3", models.StepTool, "", t0)
	startStep(t, s, "s1", "st4", models.StepTool, "search", t0)
	for _, tokens := range []int64{10, 15} {
		require.NoError(t, s.CreateLlmCall(ctx, &models.LlmCall{StepID: "st1", SessionID: "s1", AgentID: "agent-a", Model: "m", TokensIn: tokens, TokensOut: 1}))
	}
	for _, id := range []string{"st1", "st2", "st3"} {
		_, err := s.CompleteStep(ctx, StepCompletion{ID: id, SessionID: "s1", Status: models.StepSuccess, EndTime: t0.Add(time.Second)})
		require.NoError(t, err)
	}

	n, err := s.RollupSkillUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "running and unnamed steps are skipped")

	var usage models.SkillUsage
	require.NoError(t, s.DB().Where("step_id = ?", "st1").First(&usage).Error)
	assert.Equal(t, "agent-a", usage.AgentID)
	assert.Equal(t, "summarize", usage.SkillName)
	assert.Equal(t, models.StepLLM, usage.SkillType)
	assert.Equal(t, int64(1000), usage.LatencyMs)
	assert.Equal(t, int64(25), usage.TokensIn)
	assert.Equal(t, int64(2), usage.TokensOut)

	n, err = s.RollupSkillUsage(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run finds nothing new")

	skills, err := s.AgentSkills(ctx, "agent-a")
	require.NoError(t, err)
	assert.Len(t, skills, 2)
}

func TestListSessions_SubMillisecondBounds(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	us := time.Microsecond
	startSession(t, s, "before", "a", t0.Add(100*us))
	startSession(t, s, "at-from", "a", t0.Add(500*us))
	startSession(t, s, "inside", "a", t0.Add(700*us))
	startSession(t, s, "at-to", "a", t0.Add(900*us))
	startSession(t, s, "after", "a", t0.Add(950*us))

	from, to := t0.Add(500*us), t0.Add(900*us)
	page, err := s.ListSessions(ctx, SessionFilter{From: &from, To: &to, Limit: 50})
	require.NoError(t, err)

	var ids []string
	for _, sess := range page.Sessions {
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, []string{"at-to", "inside", "at-from"}, ids)
	assert.Equal(t, int64(3), page.Total)
}
