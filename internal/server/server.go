// Package server is the HTTP transport: a single /api/sdk endpoint
// dispatched by the intent query parameter, plus a liveness probe. It owns
// the request pipeline of authentication, origin policy, scope gating and
// rate limiting before any handler runs.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/formloom/gateway/internal/agents"
	"github.com/formloom/gateway/internal/apierr"
	"github.com/formloom/gateway/internal/auth"
	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/conversation"
	"github.com/formloom/gateway/internal/llm"
	"github.com/formloom/gateway/internal/ratelimit"
	"github.com/formloom/gateway/internal/tools"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Opts holds the collaborators for a Server.
type Opts struct {
	Config  *config.Config
	DB      *gorm.DB
	Client  llm.Client
	Limiter ratelimit.Limiter
	Quota   conversation.QuotaChecker
	Tools   tools.Deps
}

// Server routes SDK requests to the chat and management handlers.
type Server struct {
	cfg      *config.Config
	resolver *auth.Resolver
	limiter  ratelimit.Limiter
	agents   *agents.Store
	convs    *conversation.Store
	client   llm.Client
	tools    tools.Deps
}

// New wires a Server from its collaborators.
func New(o Opts) (*Server, error) {
	if o.Config == nil || o.DB == nil {
		return nil, fmt.Errorf("server: config and db are required")
	}
	return &Server{
		cfg:      o.Config,
		resolver: auth.NewResolver(o.DB),
		limiter:  o.Limiter,
		agents:   agents.NewStore(o.DB),
		convs:    conversation.NewStore(o.DB, o.Quota),
		client:   o.Client,
		tools:    o.Tools,
	}, nil
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/api/sdk", s.handleSDK)
	router.GET("/api/sdk", s.handleSDK)

	return router
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	log.Printf("server: listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// handleSDK is the single dispatch point. Every intent shares the same
// front half: authenticate, enforce origin policy, gate scope, rate limit.
func (s *Server) handleSDK(c *gin.Context) {
	identity, err := s.resolver.Resolve(c.Request.Context(), c.Request.Header)
	if err != nil {
		s.abortError(c, err)
		return
	}
	if err := auth.CheckOrigin(identity, c.GetHeader("Origin")); err != nil {
		s.abortError(c, err)
		return
	}

	intent := c.Query("intent")
	if intent == "" {
		s.abortError(c, apierr.Validation("intent query parameter is required"))
		return
	}

	class, window := "management", s.cfg.RateLimit.Management
	if intent == "chat" {
		class, window = "chat", s.cfg.RateLimit.Chat
	} else {
		// All non-chat intents are management surface.
		if err := auth.RequireSecret(identity); err != nil {
			s.abortError(c, err)
			return
		}
	}
	if !s.admit(c, class, window, identity.RawKey) {
		return
	}

	switch intent {
	case "chat":
		s.handleChat(c, identity)
	case "agents.list":
		s.handleAgentsList(c, identity)
	case "agents.get":
		s.handleAgentsGet(c, identity)
	case "agents.create":
		s.handleAgentsCreate(c, identity)
	case "agents.update":
		s.handleAgentsUpdate(c, identity)
	case "conversations.list":
		s.handleConversationsList(c, identity)
	case "conversations.get":
		s.handleConversationsGet(c, identity)
	case "chat.history":
		s.handleChatHistory(c, identity)
	default:
		s.abortError(c, apierr.Validation(fmt.Sprintf("unknown intent %q", intent)))
	}
}

// admit applies the rate limit for one route class, attaching the standard
// limit headers. The gate runs before any model call so a rejected request
// costs nothing upstream.
func (s *Server) admit(c *gin.Context, class string, window config.WindowConfig, rawKey string) bool {
	if s.limiter == nil {
		return true
	}
	res := s.limiter.Check(ratelimit.Identifier(class, rawKey), ratelimit.Config{
		Window: window.Window(),
		Max:    window.Max,
	})
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
		s.abortError(c, apierr.RateLimited("rate limit exceeded, retry later"))
		return false
	}
	return true
}

// abortError renders any error through the uniform envelope. Unexpected
// errors are logged with detail and surfaced as a generic internal error.
func (s *Server) abortError(c *gin.Context, err error) {
	e := apierr.From(err)
	if e.Code == apierr.CodeInternal {
		log.Printf("server: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(e.Status, apierr.ToBody(e))
}
