package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/auth"
	"github.com/formloom/gateway/internal/conversation"
	"github.com/formloom/gateway/internal/models"
	"github.com/formloom/gateway/internal/orchestrator"
	"github.com/formloom/gateway/internal/tools"
	"github.com/gin-gonic/gin"
)

// chatRequest is the SDK chat body: the client-chosen session id and the
// user's structured message.
type chatRequest struct {
	ID      string `json:"id"`
	Message struct {
		Parts []models.Part `json:"parts"`
	} `json:"message"`
}

// handleChat runs one chat turn and streams it back as SSE.
func (s *Server) handleChat(c *gin.Context, id *auth.Identity) {
	agentID := c.Query("agentId")
	if agentID == "" {
		s.abortError(c, apierr.Validation("agentId query parameter is required"))
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortError(c, apierr.Validation("malformed request body"))
		return
	}
	if !conversation.ValidSessionID(req.ID) {
		s.abortError(c, apierr.Validation("invalid session id"))
		return
	}
	if len(req.Message.Parts) == 0 {
		s.abortError(c, apierr.Validation("message must contain at least one part"))
		return
	}

	ctx := c.Request.Context()
	agent, err := s.agents.Get(ctx, id.TenantID, agentID)
	if err != nil {
		s.abortError(c, err)
		return
	}

	conv, err := s.convs.Resolve(ctx, agent, req.ID, c.Query("visitorId"))
	if err != nil {
		s.abortError(c, err)
		return
	}

	// The user turn is durable before the model is involved.
	if _, err := s.convs.AppendUserMessage(ctx, conv, req.Message.Parts); err != nil {
		s.abortError(c, err)
		return
	}

	plan := s.cfg.Plans.ForTenant(id.TenantID)
	registry, err := tools.BuildRegistry(agent, conv.ID, plan, s.tools)
	if err != nil {
		s.abortError(c, err)
		return
	}

	history, err := s.convs.LoadHistory(ctx, conv.ID)
	if err != nil {
		s.abortError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writer := &sseWriter{w: c.Writer}
	writer.send("start", gin.H{"conversationId": conv.ID, "sessionId": conv.SessionID})

	// Detached from the request context so a client disconnect does not
	// abort the in-flight model call; the writer goes quiet instead and
	// accounting still completes.
	err = orchestrator.Run(context.WithoutCancel(ctx), orchestrator.Opts{
		Client:       s.client,
		Registry:     registry,
		Store:        s.convs,
		Agent:        agent,
		Conversation: conv,
		History:      history,
		Writer:       writer,
	})
	if err != nil {
		e := apierr.From(fmt.Errorf("chat turn for %s: %w", conv.ID, err))
		writer.send("error", apierr.ToBody(e))
	}
}

// sseWriter renders orchestrator events as SSE. After the first failed
// write it goes dead and swallows everything, letting the turn finish.
type sseWriter struct {
	w    gin.ResponseWriter
	dead bool
}

func (s *sseWriter) send(event string, data any) {
	if s.dead {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		s.dead = true
		return
	}
	s.w.Flush()
}

func (s *sseWriter) TextDelta(text string) {
	s.send("text-delta", gin.H{"delta": text})
}

func (s *sseWriter) ToolCall(id, name string, args json.RawMessage) {
	s.send("tool-call", gin.H{"toolCallId": id, "toolName": name, "args": args})
}

func (s *sseWriter) ToolResult(id, output string) {
	s.send("tool-result", gin.H{"toolCallId": id, "output": output})
}

func (s *sseWriter) Finish(reason string) {
	s.send("finish", gin.H{"reason": reason})
}
