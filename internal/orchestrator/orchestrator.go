// Package orchestrator drives the bounded multi-step tool-calling loop for
// one chat turn: it streams model output to the caller as it is produced,
// executes requested tools, and records token/cost accounting exactly once
// when the turn completes.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/formloom/gateway/internal/conversation"
	"github.com/formloom/gateway/internal/llm"
	"github.com/formloom/gateway/internal/modelcat"
	"github.com/formloom/gateway/internal/models"
	"github.com/formloom/gateway/internal/pricing"
	"github.com/formloom/gateway/internal/tools"
)

// MaxSteps caps the reasoning/tool-call loop for a single turn, bounding
// latency and cost and preventing runaway tool loops.
const MaxSteps = 5

// StreamWriter receives the incremental events of one turn. Implementations
// must tolerate the client having disconnected: a dead writer swallows
// events rather than erroring, so accounting still runs to completion.
type StreamWriter interface {
	TextDelta(text string)
	ToolCall(id, name string, args json.RawMessage)
	ToolResult(id, output string)
	Finish(reason string)
}

// Opts are the inputs for one turn.
type Opts struct {
	Client       llm.Client
	Registry     *tools.Registry
	Store        *conversation.Store
	Agent        *models.Agent
	Conversation *models.Conversation
	// History is the reconstructed conversation including the just-persisted
	// user turn.
	History []llm.Message
	Writer  StreamWriter
}

// toolExecution pairs a tool call with its matched output.
type toolExecution struct {
	call    llm.ToolCall
	output  string
	matched bool
}

func (o *Opts) validate() error {
	if o.Client == nil || o.Agent == nil || o.Conversation == nil || o.Writer == nil {
		return fmt.Errorf("orchestrator: client, agent, conversation and writer are required")
	}
	return nil
}

// Run executes one turn. It returns an error only when the very first model
// call fails before anything was produced; after that, failures are folded
// into the turn and accounting still happens.
func Run(ctx context.Context, o Opts) error {
	if err := o.validate(); err != nil {
		return err
	}

	info := modelcat.Resolve(o.Agent.Model)

	msgs := make([]llm.Message, 0, len(o.History)+1)
	if prompt := systemPrompt(o.Agent); prompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: prompt})
	}
	msgs = append(msgs, o.History...)

	var defs []llm.ToolDef
	if o.Registry != nil {
		for _, t := range o.Registry.All() {
			defs = append(defs, llm.ToolDef{Name: t.Name(), Description: t.Description(), Schema: t.Schema()})
		}
	}

	start := time.Now()
	var firstToken time.Duration
	var text strings.Builder
	var executions []toolExecution
	var usage llm.Usage
	finishReason := "stop"

	onDelta := func(delta string) {
		if firstToken == 0 {
			firstToken = time.Since(start)
		}
		text.WriteString(delta)
		o.Writer.TextDelta(delta)
	}

	for step := 0; step < MaxSteps; step++ {
		res, err := o.Client.Stream(ctx, llm.Request{
			Model:       info.Canonical,
			Messages:    msgs,
			Tools:       defs,
			Temperature: info.Temperature,
		}, onDelta)
		if err != nil {
			if step == 0 && text.Len() == 0 && len(executions) == 0 {
				return fmt.Errorf("orchestrator: model call: %w", err)
			}
			// Mid-turn failure: keep what was produced and account for it.
			log.Printf("orchestrator: step %d failed for conversation %s: %v", step+1, o.Conversation.ID, err)
			finishReason = "error"
			break
		}

		usage.Add(res.Usage)
		if res.FinishReason != "" {
			finishReason = res.FinishReason
		}

		if len(res.ToolCalls) == 0 {
			break
		}
		if step == MaxSteps-1 {
			// Step cap reached with tools still pending; record the calls
			// unexecuted rather than starting another model round.
			for _, call := range res.ToolCalls {
				o.Writer.ToolCall(call.ID, call.Name, call.Args)
				executions = append(executions, toolExecution{call: call})
			}
			finishReason = "step_cap"
			break
		}

		msgs = append(msgs, llm.Message{Role: llm.RoleAssistant, Content: res.Text, ToolCalls: res.ToolCalls})
		for _, call := range res.ToolCalls {
			o.Writer.ToolCall(call.ID, call.Name, call.Args)
			output := executeTool(ctx, o.Registry, call)
			o.Writer.ToolResult(call.ID, output)
			executions = append(executions, toolExecution{call: call, output: output, matched: true})
			msgs = append(msgs, llm.Message{Role: llm.RoleTool, Content: output, ToolCallID: call.ID})
		}
	}

	finish(ctx, o, info, text.String(), executions, usage, start, firstToken)
	o.Writer.Finish(finishReason)
	return nil
}

// executeTool runs one tool call, folding failures into the output string so
// the model (and the record) sees what happened.
func executeTool(ctx context.Context, registry *tools.Registry, call llm.ToolCall) string {
	if registry == nil {
		return fmt.Sprintf("error: tool %q is not available", call.Name)
	}
	tool, ok := registry.Get(call.Name)
	if !ok {
		return fmt.Sprintf("error: tool %q is not available", call.Name)
	}
	output, err := tool.Execute(ctx, call.Args)
	if err != nil {
		log.Printf("orchestrator: tool %s: %v", call.Name, err)
		return "error: " + err.Error()
	}
	return output
}

// finish runs exactly once per turn, whether the loop completed normally or
// hit its step cap. A turn that produced neither text nor tool calls is a
// no-op and skips persistence; persistence failures are logged, never
// surfaced to the already-delivered stream.
func finish(ctx context.Context, o Opts, info modelcat.Info, text string, executions []toolExecution, usage llm.Usage, start time.Time, firstToken time.Duration) {
	if text == "" && len(executions) == 0 {
		return
	}
	if o.Store == nil {
		return
	}

	cost := pricing.Calculate(info.Provider, info.Canonical, pricing.Usage{
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CachedTokens: usage.CachedTokens,
	})

	parts := make([]models.Part, 0, len(executions)+1)
	for _, ex := range executions {
		state := models.ToolStatePending
		if ex.matched {
			state = models.ToolStateResult
		}
		parts = append(parts, models.Part{
			Type:       models.PartToolCall,
			ToolCallID: ex.call.ID,
			ToolName:   ex.call.Name,
			State:      state,
			Args:       ex.call.Args,
			Output:     ex.output,
		})
	}
	if text != "" {
		parts = append(parts, models.Part{Type: models.PartText, Text: text})
	}

	_, err := o.Store.AddAssistantMessage(ctx, o.Conversation.ID, conversation.AssistantTurn{
		Content:        text,
		Parts:          parts,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		CachedTokens:   usage.CachedTokens,
		TotalCost:      cost.TotalCost,
		Provider:       cost.Provider,
		Model:          cost.Model,
		ResponseTimeMs: int(time.Since(start).Milliseconds()),
		FirstTokenMs:   int(firstToken.Milliseconds()),
	})
	if err != nil {
		log.Printf("orchestrator: persist assistant message for %s: %v", o.Conversation.ID, err)
	}
}

// systemPrompt concatenates the agent's base instructions with any
// tenant-custom instructions.
func systemPrompt(agent *models.Agent) string {
	if agent.CustomInstructions == "" {
		return agent.Instructions
	}
	if agent.Instructions == "" {
		return agent.CustomInstructions
	}
	return agent.Instructions + "\n\n" + agent.CustomInstructions
}
