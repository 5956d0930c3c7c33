package frontdoor

import (
	"context"
	"time"

	"github.com/agentwrap/agentwrap/internal/agent"
	"github.com/agentwrap/agentwrap/internal/api/openai"
	"github.com/agentwrap/agentwrap/internal/bridge"
)

const defaultGracePeriod = 2500 * time.Millisecond

type outcomeState int

const (
	completedNormally outcomeState = iota
	terminatedByToolCall
	failed
)

// outcome is the terminal state of one agent run. toolCalls is populated only
// for terminatedByToolCall, errMsg only for failed; content lives on the
// synthesis that observed the run.
type outcome struct {
	state     outcomeState
	toolCalls []openai.ToolCall
	errMsg    string
}

func (h *Handler) execute(ctx context.Context, prompt string, specs []bridge.FunctionSpec, syn *synthesis) outcome {
	if len(specs) == 0 {
		return h.runPlain(ctx, prompt, syn)
	}
	return h.runToolRace(ctx, prompt, specs, syn)
}

// runPlain runs the agent without any bridge involvement and drains its
// events into the synthesis.
func (h *Handler) runPlain(ctx context.Context, prompt string, syn *synthesis) outcome {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := h.runner.Run(runCtx, agent.Input{Prompt: prompt})
	if err != nil {
		return outcome{state: failed, errMsg: err.Error()}
	}
	h.metrics.RecordAgentRun()

	for ev := range events {
		syn.observe(ev)
	}
	if syn.errMsg != "" {
		return outcome{state: failed, errMsg: syn.errMsg}
	}
	return outcome{state: completedNormally}
}

// runToolRace registers the request's functions with the bridge, points the
// agent's tool resolution at the bridge listener, and races agent completion
// against the tool server's termination signal. Whichever fires first decides
// the outcome.
func (h *Handler) runToolRace(ctx context.Context, prompt string, specs []bridge.FunctionSpec, syn *synthesis) outcome {
	baseURL, err := h.bridge.EnsureListener()
	if err != nil {
		return outcome{state: failed, errMsg: "bridge listener: " + err.Error()}
	}

	reqCtx := h.bridge.RegisterRequest(specs)
	defer h.bridge.UnregisterRequest(reqCtx.ID)

	override, err := agent.SkillOverride(agent.BridgeSkill(baseURL))
	if err != nil {
		return outcome{state: failed, errMsg: "bridge skill override: " + err.Error()}
	}

	full := prompt + "\n\n" + toolDirective(reqCtx.PrefixedNames())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := h.runner.Run(runCtx, agent.Input{Prompt: full, Overrides: []string{override}})
	if err != nil {
		return outcome{state: failed, errMsg: err.Error()}
	}
	h.metrics.RecordAgentRun()

	for {
		select {
		case records := <-reqCtx.Server.Terminated():
			// The agent is mid-await on a tool reply that will never
			// come; kill it and let the pump drain off-path.
			cancel()
			go drain(events)
			return outcome{state: terminatedByToolCall, toolCalls: stripPrefixes(reqCtx, records)}
		case ev, ok := <-events:
			if !ok {
				return h.settleAfterExit(reqCtx, syn)
			}
			syn.observe(ev)
		}
	}
}

// settleAfterExit decides the outcome once the agent has exited on its own.
// If a call was recorded, its debounce timer may still be pending; the grace
// wait lets that in-flight termination win over plain completion.
func (h *Handler) settleAfterExit(reqCtx *bridge.RequestContext, syn *synthesis) outcome {
	if reqCtx.Server.CallCount() > 0 {
		grace := h.gracePeriod
		if grace <= 0 {
			grace = defaultGracePeriod
		}
		select {
		case records := <-reqCtx.Server.Terminated():
			return outcome{state: terminatedByToolCall, toolCalls: stripPrefixes(reqCtx, records)}
		case <-time.After(grace):
		}
	}
	if syn.errMsg != "" {
		return outcome{state: failed, errMsg: syn.errMsg}
	}
	return outcome{state: completedNormally}
}

func drain(events <-chan agent.Event) {
	for range events {
	}
}

// stripPrefixes maps recorded calls back to the client's tool names. Records
// keep the prefixed name as called; the response must not.
func stripPrefixes(reqCtx *bridge.RequestContext, records []bridge.ToolCallRecord) []openai.ToolCall {
	calls := make([]openai.ToolCall, len(records))
	for i, rec := range records {
		name := rec.Name
		if orig, ok := reqCtx.OriginalName(rec.Name); ok {
			name = orig
		}
		calls[i] = openai.ToolCall{
			ID:   rec.ID,
			Type: "function",
			Function: openai.FunctionCall{
				Name:      name,
				Arguments: rec.Arguments,
			},
		}
	}
	return calls
}
