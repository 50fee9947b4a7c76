package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *server) handleListAgents(c *gin.Context) {
	agents, err := s.store.ListAgents(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (s *server) handleGetAgent(c *gin.Context) {
	d, err := s.store.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *server) handleAgentSkills(c *gin.Context) {
	skills, err := s.store.AgentSkills(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, skills)
}
