package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/openclaw/agentops/internal/ingest"
)

// eventRoute binds an ingest event kind to its success status.
type eventRoute struct {
	kind   string
	status int
}

var (
	eventSessionStarted   = eventRoute{ingest.KindSessionStarted, http.StatusCreated}
	eventSessionCompleted = eventRoute{ingest.KindSessionCompleted, http.StatusOK}
	eventStepStarted      = eventRoute{ingest.KindStepStarted, http.StatusCreated}
	eventStepCompleted    = eventRoute{ingest.KindStepCompleted, http.StatusOK}
	eventLlmCall          = eventRoute{ingest.KindLlmCall, http.StatusCreated}
	eventToolCall         = eventRoute{ingest.KindToolCall, http.StatusCreated}
)

// handleEvent ingests a single event of the route's kind.
func (s *server) handleEvent(route eventRoute) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			s.failIngest(c, err)
			return
		}
		res, err := s.ingest.Handle(c.Request.Context(), route.kind, raw)
		if err != nil {
			s.failIngest(c, err)
			return
		}
		zerolog.Ctx(c.Request.Context()).Debug().
			Str("event", route.kind).Str(res.IDField, res.ID).Msg("event recorded")
		c.JSON(route.status, gin.H{"success": true, res.IDField: res.ID})
	}
}

// handleBatch ingests an ordered list of events.
func (s *server) handleBatch(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		s.failIngest(c, err)
		return
	}
	res, err := s.ingest.Batch(c.Request.Context(), raw)
	if err != nil {
		s.failIngest(c, err)
		return
	}
	zerolog.Ctx(c.Request.Context()).Info().
		Int("processed", res.Processed).Int("failed", res.Failed).Msg("batch processed")
	c.JSON(http.StatusOK, res)
}
