package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/agentops/internal/ingest"
	"github.com/openclaw/agentops/internal/models"
	"github.com/openclaw/agentops/internal/store"
)

// Pagination defaults for GET /api/sessions.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type listSessionsQuery struct {
	AgentID string `form:"agent_id"`
	Status  string `form:"status" binding:"omitempty,oneof=running success failed cancelled timeout"`
	From    string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To      string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit   *int   `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset  *int   `form:"offset" binding:"omitempty,min=0"`
}

func (q listSessionsQuery) filter() store.SessionFilter {
	f := store.SessionFilter{
		AgentID: q.AgentID,
		Status:  q.Status,
		Limit:   DefaultLimit,
	}
	if q.Limit != nil {
		f.Limit = *q.Limit
	}
	if q.Offset != nil {
		f.Offset = *q.Offset
	}
	if t, err := time.Parse(ingest.TimeLayout, q.From); err == nil {
		f.From = &t
	}
	if t, err := time.Parse(ingest.TimeLayout, q.To); err == nil {
		f.To = &t
	}
	return f
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

type sessionList struct {
	Data       []models.Session `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

func (s *server) handleListSessions(c *gin.Context) {
	var q listSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, ingest.FromError(err))
		return
	}
	f := q.filter()
	page, err := s.store.ListSessions(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionList{
		Data: page.Sessions,
		Pagination: Pagination{
			Total:   page.Total,
			Limit:   f.Limit,
			Offset:  f.Offset,
			HasMore: int64(f.Offset+len(page.Sessions)) < page.Total,
		},
	})
}

func (s *server) handleGetSession(c *gin.Context) {
	d, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *server) handleSessionTimeline(c *gin.Context) {
	tl, err := s.store.SessionTimeline(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tl)
}

func (s *server) handleSessionStats(c *gin.Context) {
	st, err := s.store.SessionStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *server) handleDeleteSession(c *gin.Context) {
	if err := s.store.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session deleted"})
}
