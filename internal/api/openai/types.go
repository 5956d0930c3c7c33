// Package openai provides the OpenAI-compatible wire types served by the
// front door: chat completion requests and responses, streaming chunks,
// model listings, and error bodies.
package openai

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Object type discriminators.
const (
	ObjectChatCompletion      = "chat.completion"
	ObjectChatCompletionChunk = "chat.completion.chunk"
	ObjectModel               = "model"
	ObjectList                = "list"
)

// Finish reasons reported on the final choice.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
)

// ChatCompletionRequest represents an OpenAI chat completion request.
type ChatCompletionRequest struct {
	Model         string                  `json:"model"`
	Messages      []ChatCompletionMessage `json:"messages"`
	MaxTokens     int                     `json:"max_tokens,omitempty"`
	Temperature   *float32                `json:"temperature,omitempty"`
	TopP          *float32                `json:"top_p,omitempty"`
	N             int                     `json:"n,omitempty"`
	Stream        bool                    `json:"stream,omitempty"`
	StreamOptions *StreamOptions          `json:"stream_options,omitempty"`
	Stop          []string                `json:"stop,omitempty"`
	User          string                  `json:"user,omitempty"`
	Tools         []Tool                  `json:"tools,omitempty"`
	ToolChoice    any                     `json:"tool_choice,omitempty"`
	// Functions is the legacy pre-tools field. Still sent by older clients.
	Functions []FunctionTool `json:"functions,omitempty"`
}

// StreamOptions configures streaming behavior.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatCompletionMessage represents a message in the chat completion
// request/response. Content is a pointer so an assistant message that carries
// tool calls serializes with an explicit null content, matching OpenAI.
type ChatCompletionMessage struct {
	Role       string     `json:"role"`
	Content    *string    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the message content, empty when absent.
func (m ChatCompletionMessage) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Tool represents a tool the model can call.
type Tool struct {
	Type     string       `json:"type"`
	Function FunctionTool `json:"function"`
}

// FunctionTool describes a function tool. Parameters is kept as raw JSON and
// passed through untouched.
type FunctionTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolCall represents a tool call made by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall represents a function call with its raw argument text.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatCompletionResponse represents an OpenAI chat completion response.
type ChatCompletionResponse struct {
	ID                string   `json:"id"`
	Object            string   `json:"object"`
	Created           int64    `json:"created"`
	Model             string   `json:"model"`
	SystemFingerprint string   `json:"system_fingerprint,omitempty"`
	Choices           []Choice `json:"choices"`
	Usage             Usage    `json:"usage"`
}

// Choice represents a completion choice. Logprobs is always null; the agent
// backend has no token-level probabilities to report.
type Choice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
	Logprobs     any                   `json:"logprobs"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionChunk represents a streaming chunk.
type ChatCompletionChunk struct {
	ID                string        `json:"id"`
	Object            string        `json:"object"`
	Created           int64         `json:"created"`
	Model             string        `json:"model"`
	SystemFingerprint string        `json:"system_fingerprint,omitempty"`
	Choices           []ChunkChoice `json:"choices"`
	Usage             *Usage        `json:"usage,omitempty"`
}

// ChunkChoice represents a choice in a streaming chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
	Logprobs     any        `json:"logprobs,omitempty"`
}

// ChunkDelta represents the delta content in a streaming chunk.
type ChunkDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallChunk `json:"tool_calls,omitempty"`
}

// ToolCallChunk represents a partial tool call in streaming.
type ToolCallChunk struct {
	Index    int                `json:"index"`
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function *FunctionCallChunk `json:"function,omitempty"`
}

// FunctionCallChunk represents a partial function call.
type FunctionCallChunk struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// Model represents an OpenAI model.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList represents a list of models.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorResponse represents an OpenAI API error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// APIError contains error details.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// NewErrorResponse builds an OpenAI-shaped error body.
func NewErrorResponse(errType, message string) *ErrorResponse {
	return &ErrorResponse{Error: &APIError{Message: message, Type: errType}}
}

// NewResponseID generates a completion id in the chatcmpl- form.
func NewResponseID() string {
	return "chatcmpl-" + uuid.New().String()
}

func newChunk(id, model string) *ChatCompletionChunk {
	return &ChatCompletionChunk{
		ID:      id,
		Object:  ObjectChatCompletionChunk,
		Created: time.Now().Unix(),
		Model:   model,
	}
}

// NewRoleChunk builds the opening chunk carrying only the assistant role.
func NewRoleChunk(id, model string) *ChatCompletionChunk {
	c := newChunk(id, model)
	c.Choices = []ChunkChoice{{Delta: ChunkDelta{Role: "assistant"}}}
	return c
}

// NewContentChunk builds a chunk carrying a content delta.
func NewContentChunk(id, model, content string) *ChatCompletionChunk {
	c := newChunk(id, model)
	c.Choices = []ChunkChoice{{Delta: ChunkDelta{Content: content}}}
	return c
}

// NewToolCallsChunk builds a chunk carrying complete tool call deltas.
func NewToolCallsChunk(id, model string, calls []ToolCall) *ChatCompletionChunk {
	chunks := make([]ToolCallChunk, len(calls))
	for i, call := range calls {
		chunks[i] = ToolCallChunk{
			Index: i,
			ID:    call.ID,
			Type:  call.Type,
			Function: &FunctionCallChunk{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		}
	}
	c := newChunk(id, model)
	c.Choices = []ChunkChoice{{Delta: ChunkDelta{ToolCalls: chunks}}}
	return c
}

// NewFinishChunk builds the closing chunk: empty delta, finish reason set.
func NewFinishChunk(id, model, reason string) *ChatCompletionChunk {
	c := newChunk(id, model)
	c.Choices = []ChunkChoice{{Delta: ChunkDelta{}, FinishReason: &reason}}
	return c
}
