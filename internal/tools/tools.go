// Package tools exposes named, schema-validated capabilities to the chat
// orchestrator. The variant set is closed: context search, web search, lead
// capture, and per-agent custom HTTP tools. The registry is built once per
// request from the agent's configuration and the tenant's plan.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/formloom/gateway/internal/config"
	"github.com/formloom/gateway/internal/models"
)

// Tool is one capability offered to the model. The orchestrator treats
// tools opaquely through this contract.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the tools available for one request, in registration order.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[string]Tool{}}
}

// Register adds a tool. Later registrations with a duplicate name are
// ignored with a warning so a misconfigured custom tool cannot shadow a
// built-in.
func (r *Registry) Register(t Tool) {
	if _, ok := r.index[t.Name()]; ok {
		log.Printf("tools: duplicate tool %q ignored", t.Name())
		return
	}
	r.tools = append(r.tools, t)
	r.index[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// All returns the registered tools in order.
func (r *Registry) All() []Tool {
	return r.tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Deps are the external collaborators tools are built from.
type Deps struct {
	Search SearchProvider
	Web    WebSearcher
	Leads  LeadStore
}

// BuildRegistry assembles the per-request registry for an agent under a
// plan. Context search and lead capture are always available when their
// collaborator is wired; web search and custom HTTP tools are plan-gated.
func BuildRegistry(agent *models.Agent, conversationID string, plan config.Plan, deps Deps) (*Registry, error) {
	r := NewRegistry()

	if deps.Search != nil {
		r.Register(&SearchTool{Provider: deps.Search, AgentID: agent.ID})
	}
	if plan.WebSearch && deps.Web != nil {
		r.Register(&WebSearchTool{Searcher: deps.Web})
	}
	if deps.Leads != nil {
		r.Register(&SaveLeadTool{Store: deps.Leads, AgentID: agent.ID, ConversationID: conversationID})
	}

	if plan.CustomTools && len(agent.ToolsConfig) > 0 {
		configs, err := DecodeCustomTools(agent.ToolsConfig)
		if err != nil {
			return nil, fmt.Errorf("tools: agent %s custom tools: %w", agent.ID, err)
		}
		for _, cfg := range configs {
			r.Register(NewCustomHTTPTool(cfg))
		}
	}

	return r, nil
}
