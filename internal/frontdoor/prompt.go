package frontdoor

import (
	"strings"

	"github.com/agentwrap/agentwrap/internal/api/openai"
	"github.com/agentwrap/agentwrap/internal/bridge"
)

// renderPrompt flattens the conversation into the single prompt the agent
// consumes: one "role: content" paragraph per message.
func renderPrompt(messages []openai.ChatCompletionMessage) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		parts = append(parts, role+": "+msg.Text())
	}
	return strings.Join(parts, "\n\n")
}

// toolDirective tells the agent which tool names its tool source publishes
// for this request. Names arrive already prefixed.
func toolDirective(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return "You have access to the following tools: " + strings.Join(names, ", ") +
		". Call a tool whenever the request requires it."
}

// extractFunctions collects function definitions from the tools field and the
// legacy top-level functions field, in that order. Entries without a name are
// skipped; parameter schemas pass through untouched.
func extractFunctions(req *openai.ChatCompletionRequest) []bridge.FunctionSpec {
	var specs []bridge.FunctionSpec
	for _, tool := range req.Tools {
		if tool.Type != "function" || tool.Function.Name == "" {
			continue
		}
		specs = append(specs, bridge.FunctionSpec{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			Parameters:  tool.Function.Parameters,
		})
	}
	for _, fn := range req.Functions {
		if fn.Name == "" {
			continue
		}
		specs = append(specs, bridge.FunctionSpec{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		})
	}
	return specs
}
