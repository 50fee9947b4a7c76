package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/agentops/internal/db/dbtest"
	"github.com/openclaw/agentops/internal/models"
	"github.com/openclaw/agentops/internal/store"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	sessions []*models.Session
}

func (r *recordingNotifier) SessionCompleted(sess *models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, sess)
}

func newService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	st := store.New(dbtest.Open(t))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(st, opts...), st
}

func handle(t *testing.T, svc *Service, kind, body string) Result {
	t.Helper()
	r, err := svc.Handle(context.Background(), kind, []byte(body))
	require.NoError(t, err, "%s: %s", kind, body)
	return r
}

func fields(err error) []string {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	out := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		out = append(out, fe.Field)
	}
	return out
}

const sessionStarted = `{"trace_id":"t1","session_id":"s1","agent_id":"a1","trigger_source":"cron","start_time":"2024-01-01T00:00:00Z"}`

func TestHandle_SessionLifecycle(t *testing.T) {
	n := &recordingNotifier{}
	svc, st := newService(t, WithNotifier(n))
	ctx := context.Background()

	r := handle(t, svc, KindSessionStarted, sessionStarted)
	assert.Equal(t, Result{IDField: "session_id", ID: "s1"}, r)

	sess, err := st.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionRunning, sess.Status)
	assert.True(t, sess.StartTime.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	handle(t, svc, KindSessionCompleted, `{"trace_id":"t1","session_id":"s1","status":"failed","total_tokens_in":12,"error_code":"E1"}`)
	sess, err = st.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, sess.Status)
	require.NotNil(t, sess.EndTime)
	assert.True(t, sess.EndTime.Equal(fixedNow), "end_time defaults to receive time")
	assert.Equal(t, int64(12), sess.TotalTokensIn)
	require.Len(t, n.sessions, 1)
	assert.Equal(t, "s1", n.sessions[0].ID)

	_, err = svc.Handle(ctx, KindSessionCompleted, []byte(`{"trace_id":"t1","session_id":"s1","status":"success"}`))
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Len(t, n.sessions, 1, "notifier only sees the first completion")

	_, err = svc.Handle(ctx, KindSessionStarted, []byte(sessionStarted))
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestHandle_StepsAndCalls(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	handle(t, svc, KindSessionStarted, sessionStarted)

	r := handle(t, svc, KindStepStarted, `{"trace_id":"t1","session_id":"s1","step_id":"st1","step_type":"tool","skill_name":"search"}`)
	assert.Equal(t, Result{IDField: "step_id", ID: "st1"}, r)

	r = handle(t, svc, KindToolCall, `{"trace_id":"t1","step_id":"st1","session_id":"s1","tool_name":"grep","status":"success","latency_ms":5,"input_json":{"q": "x"},"output_json":null}`)
	assert.Equal(t, "id", r.IDField)
	assert.Len(t, r.ID, 36)

	r = handle(t, svc, KindLlmCall, `{"trace_id":"t1","step_id":"st1","session_id":"s1","agent_id":"a1","model":"m","tokens_in":0,"tokens_out":3,"latency_ms":10}`)
	assert.NotEmpty(t, r.ID)

	handle(t, svc, KindStepCompleted, `{"trace_id":"t1","session_id":"s1","step_id":"st1","status":"success","end_time":"2024-06-01T12:00:02Z"}`)

	d, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, d.Steps, 1)
	step := d.Steps[0]
	assert.Equal(t, models.StepSuccess, step.Status)
	require.NotNil(t, step.DurationMs)
	assert.Equal(t, int64(2000), *step.DurationMs, "start defaults to now, duration derived from end")

	require.Len(t, d.ToolCalls, 1)
	require.NotNil(t, d.ToolCalls[0].InputJSON)
	assert.Equal(t, `{"q":"x"}`, *d.ToolCalls[0].InputJSON)
	assert.Nil(t, d.ToolCalls[0].OutputJSON)
	assert.Equal(t, 0, d.ToolCalls[0].RetryCount)

	_, err = svc.Handle(ctx, KindLlmCall, []byte(`{"trace_id":"t1","step_id":"st1","session_id":"nope","agent_id":"a1","model":"m","tokens_in":1,"tokens_out":1,"latency_ms":1}`))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestHandle_Validation(t *testing.T) {
	svc, st := newService(t)

	tests := []struct {
		name   string
		kind   string
		body   string
		fields []string
	}{
		{
			name:   "empty body",
			kind:   KindSessionStarted,
			body:   ``,
			fields: []string{"trace_id", "session_id", "agent_id", "trigger_source", "start_time"},
		},
		{
			name:   "bad timestamp",
			kind:   KindSessionStarted,
			body:   `{"trace_id":"t","session_id":"s","agent_id":"a","trigger_source":"x","start_time":"yesterday"}`,
			fields: []string{"start_time"},
		},
		{
			name:   "negative tokens",
			kind:   KindLlmCall,
			body:   `{"trace_id":"t","step_id":"st","session_id":"s","agent_id":"a","model":"m","tokens_in":-1,"tokens_out":0,"latency_ms":0}`,
			fields: []string{"tokens_in"},
		},
		{
			name:   "missing tokens",
			kind:   KindLlmCall,
			body:   `{"trace_id":"t","step_id":"st","session_id":"s","agent_id":"a","model":"m"}`,
			fields: []string{"tokens_in", "tokens_out", "latency_ms"},
		},
		{
			name:   "bad session status",
			kind:   KindSessionCompleted,
			body:   `{"trace_id":"t","session_id":"s","status":"running"}`,
			fields: []string{"status"},
		},
		{
			name:   "bad step type",
			kind:   KindStepStarted,
			body:   `{"trace_id":"t","session_id":"s","step_id":"st","step_type":"thinking"}`,
			fields: []string{"step_type"},
		},
		{
			name:   "negative retry count",
			kind:   KindToolCall,
			body:   `{"trace_id":"t","step_id":"st","session_id":"s","tool_name":"x","status":"success","latency_ms":1,"retry_count":-2}`,
			fields: []string{"retry_count"},
		},
		{
			name:   "wrong type",
			kind:   KindStepCompleted,
			body:   `{"trace_id":"t","session_id":"s","step_id":"st","status":"success","duration_ms":"fast"}`,
			fields: []string{"duration_ms"},
		},
		{
			name:   "malformed json",
			kind:   KindStepCompleted,
			body:   `{"trace_id":`,
			fields: []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Handle(context.Background(), tt.kind, []byte(tt.body))
			require.Error(t, err)
			assert.ElementsMatch(t, tt.fields, fields(err))
		})
	}

	c, err := st.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Counts{}, c, "validation failures never write")
}

func TestHandle_ValidationMessages(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Handle(context.Background(), KindLlmCall,
		[]byte(`{"trace_id":"t","step_id":"st","session_id":"s","agent_id":"a","model":"m","tokens_in":-1,"tokens_out":0,"latency_ms":0}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []FieldError{{Field: "tokens_in", Message: "must be greater than or equal to 0"}}, ve.Errors)
	assert.Contains(t, ve.Error(), "tokens_in")
}

func TestHandle_UnknownKind(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Handle(context.Background(), "nope", []byte(`{}`))
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	body := `{"events":[
		{"event":"session_started","trace_id":"t1","session_id":"s1","agent_id":"a1","trigger_source":"api","start_time":"2024-01-01T00:00:00Z"},
		{"event":"step_started","trace_id":"t1","session_id":"s1","step_id":"st1","step_type":"llm"},
		{"event":"llm_call","trace_id":"t1","step_id":"st1","session_id":"s1","agent_id":"a1","model":"m","tokens_in":-5,"tokens_out":1,"latency_ms":1},
		{"event":"step_started","trace_id":"t1","session_id":"missing","step_id":"st2","step_type":"llm"},
		{"event":"teleport"},
		{"event":"session_completed","trace_id":"t1","session_id":"s1","status":"success"}
	]}`

	res, err := svc.Batch(ctx, []byte(body))
	require.NoError(t, err)
	assert.Equal(t, 6, res.Processed)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 3, res.Failed)
	require.Len(t, res.Results, 6)

	for i, item := range res.Results {
		assert.Equal(t, i, item.Index)
	}
	assert.True(t, res.Results[0].Success)
	assert.Equal(t, "s1", res.Results[0].ID)
	assert.Equal(t, "step_started", res.Results[1].EventType)

	assert.False(t, res.Results[2].Success)
	assert.Equal(t, "Validation failed", res.Results[2].Error)
	assert.Equal(t, "tokens_in", res.Results[2].Errors[0].Field)

	assert.Equal(t, "Session not found", res.Results[3].Error)
	assert.True(t, strings.HasPrefix(res.Results[4].Error, "Unknown event type"))
	assert.True(t, res.Results[5].Success)

	sess, err := st.Session(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionSuccess, sess.Status, "later events still run after failures")
}

func TestBatch_BadBody(t *testing.T) {
	svc, _ := newService(t, WithMaxBatchEvents(2))

	tests := []struct {
		name string
		body string
	}{
		{"missing events", `{}`},
		{"events not array", `{"events":{"event":"session_started"}}`},
		{"events null", `{"events":null}`},
		{"too many", `{"events":[{},{},{}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Batch(context.Background(), []byte(tt.body))
			assert.Equal(t, []string{"events"}, fields(err))
		})
	}

	res, err := svc.Batch(context.Background(), []byte(`{"events":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	assert.NotNil(t, res.Results)
}

func TestSerialize(t *testing.T) {
	tests := []struct {
		raw  string
		want *string
	}{
		{"", nil},
		{"null", nil},
		{` "text" `, ptr(`"text"`)},
		{`[1, 2]`, ptr(`[1,2]`)},
		{`0`, ptr(`0`)},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.raw), func(t *testing.T) {
			assert.Equal(t, tt.want, serialize([]byte(tt.raw)))
		})
	}
}

func ptr(s string) *string { return &s }

func oneofValues(t *testing.T, v any, field string) []string {
	t.Helper()
	f, ok := reflect.TypeOf(v).FieldByName(field)
	require.True(t, ok, field)
	for _, rule := range strings.Split(f.Tag.Get("binding"), ",") {
		if values, ok := strings.CutPrefix(rule, "oneof="); ok {
			return strings.Fields(values)
		}
	}
	t.Fatalf("%s has no oneof rule", field)
	return nil
}

func TestBindingTags_MatchModelEnums(t *testing.T) {
	assert.Equal(t, models.StepTypes, oneofValues(t, StepStarted{}, "StepType"))
	assert.Equal(t, models.SessionStatuses[1:], oneofValues(t, SessionCompleted{}, "Status"))
	assert.Equal(t, []string{models.StepSuccess, models.StepError}, oneofValues(t, StepCompleted{}, "Status"))
	assert.Equal(t, []string{models.StepSuccess, models.StepError}, oneofValues(t, ToolCall{}, "Status"))
}
