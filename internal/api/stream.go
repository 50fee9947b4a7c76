package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/openclaw/agentops/internal/models"
)

// handleSessionStream polls a session and pushes step changes as
// Server-Sent Events until the session reaches a terminal status or the
// client goes away.
func (s *server) handleSessionStream(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	sess, err := s.store.Session(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeSSE(c.Writer, "connected", gin.H{"session_id": id, "status": sess.Status})
	c.Writer.Flush()

	seen := make(map[string]string)
	done, err := s.pushChanges(c, id, seen)
	if err != nil || done {
		return
	}

	ticker := time.NewTicker(s.poll)
	heartbeat := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)})
			c.Writer.Flush()
		case <-ticker.C:
			done, err := s.pushChanges(c, id, seen)
			if err != nil || done {
				return
			}
		}
	}
}

// pushChanges emits a step event for every step whose status changed since
// the last call, then a session event once the session is terminal. It
// reports whether the stream is finished.
func (s *server) pushChanges(c *gin.Context, id string, seen map[string]string) (bool, error) {
	ctx := c.Request.Context()
	log := zerolog.Ctx(ctx)

	steps, err := s.store.Steps(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("session_id", id).Msg("stream: load steps")
		writeSSE(c.Writer, "error", gin.H{"error": "Failed to load session"})
		c.Writer.Flush()
		return true, err
	}
	for i := range steps {
		st := &steps[i]
		if seen[st.ID] == st.Status {
			continue
		}
		seen[st.ID] = st.Status
		writeSSE(c.Writer, "step", st)
	}

	sess, err := s.store.Session(ctx, id)
	if err != nil {
		// Deleted while streaming.
		writeSSE(c.Writer, "error", gin.H{"error": "Session not found"})
		c.Writer.Flush()
		return true, err
	}
	if sess.Terminal() {
		writeSSE(c.Writer, "session", sessionEvent(sess))
		c.Writer.Flush()
		return true, nil
	}
	c.Writer.Flush()
	return false, nil
}

func sessionEvent(sess *models.Session) gin.H {
	return gin.H{
		"session_id":       sess.ID,
		"status":           sess.Status,
		"end_time":         sess.EndTime,
		"total_steps":      sess.TotalSteps,
		"total_tokens_in":  sess.TotalTokensIn,
		"total_tokens_out": sess.TotalTokensOut,
		"error_code":       sess.ErrorCode,
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}
