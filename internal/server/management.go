package server

import (
	"strconv"

	"github.com/formloom/gateway/internal/agents"
	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/auth"
	"github.com/gin-gonic/gin"
)

// Management handlers. All are secret-key gated by the dispatcher and
// respond with {"data": ...}.

func (s *Server) handleAgentsList(c *gin.Context, id *auth.Identity) {
	list, err := s.agents.List(c.Request.Context(), id.TenantID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": list})
}

func (s *Server) handleAgentsGet(c *gin.Context, id *auth.Identity) {
	agentID := c.Query("id")
	if agentID == "" {
		s.abortError(c, apierr.Validation("id query parameter is required"))
		return
	}
	agent, err := s.agents.Get(c.Request.Context(), id.TenantID, agentID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": agent})
}

func (s *Server) handleAgentsCreate(c *gin.Context, id *auth.Identity) {
	var params agents.CreateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		s.abortError(c, apierr.Validation("malformed request body"))
		return
	}
	agent, err := s.agents.Create(c.Request.Context(), id.TenantID, params)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(201, gin.H{"data": agent})
}

func (s *Server) handleAgentsUpdate(c *gin.Context, id *auth.Identity) {
	agentID := c.Query("id")
	if agentID == "" {
		s.abortError(c, apierr.Validation("id query parameter is required"))
		return
	}
	var params agents.UpdateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		s.abortError(c, apierr.Validation("malformed request body"))
		return
	}
	agent, err := s.agents.Update(c.Request.Context(), id.TenantID, agentID, params)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": agent})
}

func (s *Server) handleConversationsList(c *gin.Context, id *auth.Identity) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	convs, err := s.convs.List(c.Request.Context(), id.TenantID, c.Query("agentId"), limit, offset)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": convs})
}

func (s *Server) handleConversationsGet(c *gin.Context, id *auth.Identity) {
	convID := c.Query("id")
	if convID == "" {
		s.abortError(c, apierr.Validation("id query parameter is required"))
		return
	}
	conv, err := s.convs.Get(c.Request.Context(), id.TenantID, convID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": conv})
}

func (s *Server) handleChatHistory(c *gin.Context, id *auth.Identity) {
	convID := c.Query("conversationId")
	if convID == "" {
		s.abortError(c, apierr.Validation("conversationId query parameter is required"))
		return
	}
	msgs, err := s.convs.Messages(c.Request.Context(), id.TenantID, convID)
	if err != nil {
		s.abortError(c, err)
		return
	}
	c.JSON(200, gin.H{"data": msgs})
}
