package frontdoor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentwrap/agentwrap/internal/agent"
	"github.com/agentwrap/agentwrap/internal/api/openai"
	"github.com/agentwrap/agentwrap/internal/bridge"
	"github.com/agentwrap/agentwrap/internal/config"
)

// ===== Test runners =====

// scriptedRunner plays back a fixed event sequence. With block set it holds
// the stream open until the context is canceled, like an agent awaiting a
// tool reply.
type scriptedRunner struct {
	events []agent.Event
	block  bool
}

func (r *scriptedRunner) Run(ctx context.Context, input agent.Input) (<-chan agent.Event, error) {
	ch := make(chan agent.Event)
	go func() {
		defer close(ch)
		for _, ev := range r.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if r.block {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// toolCallingRunner behaves like an agent that resolves its tool source from
// the config override, reads the published tool names from the prompt, and
// issues one tools/call over HTTP. With exit set it exits right after the
// call instead of awaiting the reply.
type toolCallingRunner struct {
	t    *testing.T
	args string
	exit bool
	pre  []agent.Event
}

func (r *toolCallingRunner) Run(ctx context.Context, input agent.Input) (<-chan agent.Event, error) {
	ch := make(chan agent.Event)
	go func() {
		defer close(ch)
		for _, ev := range r.pre {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}

		baseURL, ok := overrideURL(input.Overrides)
		if !ok {
			r.t.Error("no bridge URL in overrides")
			return
		}
		name, ok := firstPromptTool(input.Prompt)
		if !ok {
			r.t.Errorf("no tool name in prompt: %q", input.Prompt)
			return
		}
		postToolCall(r.t, baseURL, name, r.args)

		if !r.exit {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

func overrideURL(overrides []string) (string, bool) {
	for _, o := range overrides {
		rest, ok := strings.CutPrefix(o, "skills=")
		if !ok {
			continue
		}
		var skills []agent.SkillConfig
		if err := json.Unmarshal([]byte(rest), &skills); err != nil {
			return "", false
		}
		for _, s := range skills {
			if s.URL != "" {
				return s.URL, true
			}
		}
	}
	return "", false
}

func firstPromptTool(prompt string) (string, bool) {
	const marker = "tools: "
	i := strings.Index(prompt, marker)
	if i < 0 {
		return "", false
	}
	rest := prompt[i+len(marker):]
	end := strings.IndexAny(rest, ".,")
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

func postToolCall(t *testing.T, baseURL, name, args string) {
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":%q,"arguments":%s}}`, name, args)
	resp, err := http.Post(baseURL, "application/json", strings.NewReader(body))
	if err != nil {
		t.Errorf("tools/call request failed: %v", err)
		return
	}
	resp.Body.Close()
}

// ===== Helpers =====

func testHandler(t *testing.T, runner agent.Runner, delay time.Duration) *Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bridge.New(bridge.Config{TerminationDelay: delay, Logger: logger})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.Shutdown(ctx)
	})
	return New(Config{
		Runner:      runner,
		Bridge:      b,
		Models:      []config.ModelListItem{{ID: "agentwrap-codex", OwnedBy: "agentwrap"}},
		GracePeriod: 2 * time.Second,
		Logger:      logger,
	})
}

func postCompletion(t *testing.T, h *Handler, reqBody string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(reqBody))
	w := httptest.NewRecorder()
	h.HandleChatCompletion(w, r)
	return w
}

func decodeCompletion(t *testing.T, w *httptest.ResponseRecorder) openai.ChatCompletionResponse {
	t.Helper()
	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, w.Body.String())
	}
	return resp
}

// sseData extracts the payload of every data: line, in order.
func sseData(body string) []string {
	var out []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "data: ") {
			out = append(out, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func messageEvent(text string) agent.Event {
	return agent.Event{Type: agent.EventMessage, Text: text}
}

// ===== Non-streaming =====

func TestHandleChatCompletion_Sync_Stop(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{
		{Type: agent.EventThreadStarted, ThreadID: "th_1"},
		{Type: agent.EventReasoning, Text: "thinking"},
		messageEvent("42"),
		{Type: agent.EventTurnCompleted, Usage: &agent.TokenUsage{InputTokens: 10, OutputTokens: 5}},
	}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"what is 6*7?"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeCompletion(t, w)
	if resp.Object != "chat.completion" {
		t.Errorf("object = %q", resp.Object)
	}
	if !strings.HasPrefix(resp.ID, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", resp.ID)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("len(choices) = %d", len(resp.Choices))
	}
	choice := resp.Choices[0]
	if choice.FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
	// Only message events reach the final content; reasoning renders for
	// the stream but never enters the answer.
	if got := choice.Message.Text(); got != "42" {
		t.Errorf("content = %q, want 42", got)
	}
	if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 5 || resp.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v, want 10/5/15", resp.Usage)
	}
}

func TestHandleChatCompletion_Sync_EstimatedUsage(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{messageEvent("the answer is out there")}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"tell me"}]}`)
	resp := decodeCompletion(t, w)

	// No turn_completed from the agent, usage falls back to estimation.
	if resp.Usage.PromptTokens == 0 {
		t.Error("prompt_tokens = 0, want estimate")
	}
	if resp.Usage.CompletionTokens == 0 {
		t.Error("completion_tokens = 0, want estimate")
	}
	if resp.Usage.TotalTokens != resp.Usage.PromptTokens+resp.Usage.CompletionTokens {
		t.Errorf("total = %d, want sum", resp.Usage.TotalTokens)
	}
}

func TestHandleChatCompletion_Sync_ToolCalls(t *testing.T) {
	runner := &toolCallingRunner{t: t, args: `{"city":"Oslo"}`}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"weather in Oslo?"}],
		"tools": [{"type":"function","function":{"name":"get_weather","parameters":{"type":"object","properties":{"city":{"type":"string"}}}}}]
	}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	resp := decodeCompletion(t, w)
	choice := resp.Choices[0]
	if choice.FinishReason != "tool_calls" {
		t.Errorf("finish_reason = %q, want tool_calls", choice.FinishReason)
	}
	if choice.Message.Content != nil {
		t.Errorf("content = %v, want null", *choice.Message.Content)
	}
	if !strings.Contains(w.Body.String(), `"content":null`) {
		t.Error("response must serialize content as explicit null")
	}
	if len(choice.Message.ToolCalls) != 1 {
		t.Fatalf("len(tool_calls) = %d, want 1", len(choice.Message.ToolCalls))
	}
	call := choice.Message.ToolCalls[0]
	if call.Function.Name != "get_weather" {
		t.Errorf("name = %q, want get_weather (prefix stripped)", call.Function.Name)
	}
	if call.Function.Arguments != `{"city":"Oslo"}` {
		t.Errorf("arguments = %q", call.Function.Arguments)
	}
	if !strings.HasPrefix(call.ID, "call_") {
		t.Errorf("call id = %q, want call_ prefix", call.ID)
	}
	if call.Type != "function" {
		t.Errorf("type = %q", call.Type)
	}
}

func TestHandleChatCompletion_Sync_LegacyFunctions(t *testing.T) {
	runner := &toolCallingRunner{t: t, args: `{"username":"alice"}`}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"look up alice"}],
		"functions": [{"name":"getUserId"}]
	}`)
	resp := decodeCompletion(t, w)
	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) != 1 {
		t.Fatalf("len(tool_calls) = %d, want 1", len(calls))
	}
	if calls[0].Function.Name != "getUserId" {
		t.Errorf("name = %q, want getUserId", calls[0].Function.Name)
	}
	if calls[0].Function.Arguments != `{"username":"alice"}` {
		t.Errorf("arguments = %q", calls[0].Function.Arguments)
	}
}

// The agent can exit on its own microseconds after a call was recorded but
// before the debounce window closes. The grace wait must still turn that
// into a tool-call outcome.
func TestHandleChatCompletion_Sync_GraceAfterAgentExit(t *testing.T) {
	runner := &toolCallingRunner{t: t, args: `{"q":"news"}`, exit: true}
	h := testHandler(t, runner, 150*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"search the news"}],
		"tools": [{"type":"function","function":{"name":"search"}}]
	}`)
	resp := decodeCompletion(t, w)
	choice := resp.Choices[0]
	if choice.FinishReason != "tool_calls" {
		t.Fatalf("finish_reason = %q, want tool_calls after grace wait", choice.FinishReason)
	}
	if len(choice.Message.ToolCalls) != 1 || choice.Message.ToolCalls[0].Function.Name != "search" {
		t.Errorf("tool_calls = %+v", choice.Message.ToolCalls)
	}
}

func TestHandleChatCompletion_Sync_ToolsDefinedButUnused(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{messageEvent("no tool needed")}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"hello"}],
		"tools": [{"type":"function","function":{"name":"get_weather"}}]
	}`)
	resp := decodeCompletion(t, w)
	choice := resp.Choices[0]
	if choice.FinishReason != "stop" {
		t.Errorf("finish_reason = %q, want stop", choice.FinishReason)
	}
	if got := choice.Message.Text(); got != "no tool needed" {
		t.Errorf("content = %q", got)
	}
}

func TestHandleChatCompletion_Sync_AgentFailure(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{
		{Type: agent.EventError, Message: "codex exited with status 3"},
	}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"hi"}]}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var er openai.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if er.Error == nil || !strings.Contains(er.Error.Message, "status 3") {
		t.Errorf("error body = %s", w.Body.String())
	}
	if er.Error.Type != "internal_error" {
		t.Errorf("error type = %q", er.Error.Type)
	}
}

// ===== Validation =====

func TestHandleChatCompletion_Validation(t *testing.T) {
	h := testHandler(t, &scriptedRunner{}, 100*time.Millisecond)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing model", `{"messages":[{"role":"user","content":"hi"}]}`},
		{"empty messages", `{"model":"agentwrap-codex","messages":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCompletion(t, h, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			var er openai.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("error body not OpenAI-shaped: %s", w.Body.String())
			}
			if er.Error.Type != "invalid_request_error" {
				t.Errorf("error type = %q", er.Error.Type)
			}
		})
	}
}

// ===== Streaming =====

func TestHandleChatCompletion_Stream_Stop(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{
		{Type: agent.EventReasoning, Text: "let me think"},
		messageEvent("hello "),
		messageEvent("world"),
	}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	payloads := sseData(w.Body.String())
	if len(payloads) < 3 {
		t.Fatalf("too few SSE payloads: %v", payloads)
	}
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE], got %q", payloads[len(payloads)-1])
	}

	var roleChunks, finishChunks int
	var streamed strings.Builder
	for _, p := range payloads[:len(payloads)-1] {
		var c openai.ChatCompletionChunk
		if err := json.Unmarshal([]byte(p), &c); err != nil {
			t.Fatalf("bad chunk %q: %v", p, err)
		}
		if c.Object != "chat.completion.chunk" {
			t.Errorf("object = %q", c.Object)
		}
		delta := c.Choices[0].Delta
		if delta.Role == "assistant" {
			roleChunks++
		}
		streamed.WriteString(delta.Content)
		if fr := c.Choices[0].FinishReason; fr != nil {
			finishChunks++
			if *fr != "stop" {
				t.Errorf("finish_reason = %q, want stop", *fr)
			}
		}
	}
	if roleChunks != 1 {
		t.Errorf("role chunks = %d, want exactly 1", roleChunks)
	}
	if finishChunks != 1 {
		t.Errorf("finish chunks = %d, want exactly 1", finishChunks)
	}
	// The stream carries bracketed renderings, not just the answer.
	if got := streamed.String(); got != "[Reasoning] let me think\nhello world" {
		t.Errorf("streamed content = %q", got)
	}
}

func TestHandleChatCompletion_Stream_RoleChunkFirst(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{messageEvent("x")}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	payloads := sseData(w.Body.String())

	var first openai.ChatCompletionChunk
	if err := json.Unmarshal([]byte(payloads[0]), &first); err != nil {
		t.Fatalf("bad first chunk: %v", err)
	}
	if first.Choices[0].Delta.Role != "assistant" {
		t.Errorf("first chunk delta = %+v, want role assistant", first.Choices[0].Delta)
	}
	if first.Choices[0].Delta.Content != "" {
		t.Errorf("role chunk must not carry content")
	}
}

func TestHandleChatCompletion_Stream_ToolCalls(t *testing.T) {
	runner := &toolCallingRunner{
		t:    t,
		args: `{"city":"Oslo"}`,
		pre:  []agent.Event{{Type: agent.EventReasoning, Text: "need the weather tool"}},
	}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"weather in Oslo?"}],
		"tools": [{"type":"function","function":{"name":"get_weather"}}],
		"stream": true
	}`)

	payloads := sseData(w.Body.String())
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Fatalf("stream must end with [DONE]")
	}

	var sawToolCall bool
	var finishReason string
	for _, p := range payloads[:len(payloads)-1] {
		var c openai.ChatCompletionChunk
		if err := json.Unmarshal([]byte(p), &c); err != nil {
			t.Fatalf("bad chunk %q: %v", p, err)
		}
		delta := c.Choices[0].Delta
		if len(delta.ToolCalls) > 0 {
			sawToolCall = true
			tc := delta.ToolCalls[0]
			if tc.Function.Name != "get_weather" {
				t.Errorf("tool call name = %q, want get_weather", tc.Function.Name)
			}
			if tc.Function.Arguments != `{"city":"Oslo"}` {
				t.Errorf("arguments = %q", tc.Function.Arguments)
			}
		}
		if fr := c.Choices[0].FinishReason; fr != nil {
			finishReason = *fr
		}
	}
	if !sawToolCall {
		t.Error("no tool call delta in stream")
	}
	if finishReason != "tool_calls" {
		t.Errorf("finish_reason = %q, want tool_calls", finishReason)
	}
}

func TestHandleChatCompletion_Stream_Error(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{
		messageEvent("partial "),
		{Type: agent.EventError, Message: "codex exited with status 1"},
	}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{"model":"agentwrap-codex","messages":[{"role":"user","content":"hi"}],"stream":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("streaming errors are in-band, status = %d", w.Code)
	}

	payloads := sseData(w.Body.String())
	if payloads[len(payloads)-1] != "[DONE]" {
		t.Fatal("stream must still close with [DONE] after an error")
	}

	var sawError bool
	for _, p := range payloads[:len(payloads)-1] {
		if strings.Contains(p, `"error"`) {
			var er openai.ErrorResponse
			if err := json.Unmarshal([]byte(p), &er); err != nil {
				t.Fatalf("bad error chunk %q: %v", p, err)
			}
			if !strings.Contains(er.Error.Message, "status 1") {
				t.Errorf("error message = %q", er.Error.Message)
			}
			sawError = true
		}
	}
	if !sawError {
		t.Error("no in-band error chunk")
	}
	// The error chunk replaces the finish chunk.
	if strings.Contains(w.Body.String(), `"finish_reason":"stop"`) {
		t.Error("error stream must not carry a stop finish chunk")
	}
}

func TestHandleChatCompletion_Stream_IncludeUsage(t *testing.T) {
	runner := &scriptedRunner{events: []agent.Event{
		messageEvent("done"),
		{Type: agent.EventTurnCompleted, Usage: &agent.TokenUsage{InputTokens: 7, OutputTokens: 2}},
	}}
	h := testHandler(t, runner, 100*time.Millisecond)

	w := postCompletion(t, h, `{
		"model": "agentwrap-codex",
		"messages": [{"role":"user","content":"hi"}],
		"stream": true,
		"stream_options": {"include_usage": true}
	}`)

	payloads := sseData(w.Body.String())
	// Usage chunk rides between the finish chunk and [DONE].
	usagePayload := payloads[len(payloads)-2]
	var c openai.ChatCompletionChunk
	if err := json.Unmarshal([]byte(usagePayload), &c); err != nil {
		t.Fatalf("bad usage chunk %q: %v", usagePayload, err)
	}
	if c.Usage == nil {
		t.Fatalf("usage chunk missing usage: %s", usagePayload)
	}
	if c.Usage.PromptTokens != 7 || c.Usage.CompletionTokens != 2 || c.Usage.TotalTokens != 9 {
		t.Errorf("usage = %+v, want 7/2/9", c.Usage)
	}
	if len(c.Choices) != 0 {
		t.Errorf("usage chunk choices = %v, want empty", c.Choices)
	}
}

// ===== Context isolation =====

func TestHandleChatCompletion_ConcurrentToolRequests(t *testing.T) {
	h := testHandler(t, nil, 100*time.Millisecond)

	type result struct {
		args string
		resp openai.ChatCompletionResponse
	}
	results := make(chan result, 2)

	var wg sync.WaitGroup
	for _, args := range []string{`{"q":"alpha"}`, `{"q":"beta"}`} {
		wg.Add(1)
		go func(args string) {
			defer wg.Done()
			runner := &toolCallingRunner{t: t, args: args}
			local := *h
			local.runner = runner
			w := postCompletion(t, &local, `{
				"model": "agentwrap-codex",
				"messages": [{"role":"user","content":"search"}],
				"tools": [{"type":"function","function":{"name":"search"}}]
			}`)
			var resp openai.ChatCompletionResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Errorf("decode failed: %v", err)
				return
			}
			results <- result{args: args, resp: resp}
		}(args)
	}
	wg.Wait()
	close(results)

	seen := 0
	for res := range results {
		seen++
		calls := res.resp.Choices[0].Message.ToolCalls
		if len(calls) != 1 {
			t.Fatalf("len(tool_calls) = %d", len(calls))
		}
		if calls[0].Function.Name != "search" {
			t.Errorf("name = %q", calls[0].Function.Name)
		}
		// Each request's call must carry its own arguments, never the
		// other context's.
		if calls[0].Function.Arguments != res.args {
			t.Errorf("arguments = %q, want %q", calls[0].Function.Arguments, res.args)
		}
	}
	if seen != 2 {
		t.Fatalf("results = %d, want 2", seen)
	}
}

// ===== Models =====

func TestHandleModels(t *testing.T) {
	h := testHandler(t, &scriptedRunner{}, 100*time.Millisecond)
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var list openai.ModelList
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if list.Object != "list" || len(list.Data) != 1 {
		t.Fatalf("list = %+v", list)
	}
	m := list.Data[0]
	if m.ID != "agentwrap-codex" || m.Object != "model" || m.OwnedBy != "agentwrap" {
		t.Errorf("model = %+v", m)
	}
	if m.Created == 0 {
		t.Error("created not backfilled")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/models/agentwrap-codex", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get model status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/models/nope", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown model status = %d, want 404", w.Code)
	}
}

// ===== Prompt composition =====

func TestRenderPrompt(t *testing.T) {
	system := "be brief"
	user := "hi"
	got := renderPrompt([]openai.ChatCompletionMessage{
		{Role: "system", Content: &system},
		{Role: "user", Content: &user},
	})
	want := "system: be brief\n\nuser: hi"
	if got != want {
		t.Errorf("prompt = %q, want %q", got, want)
	}
}

func TestRenderPrompt_DefaultsRole(t *testing.T) {
	text := "anonymous"
	got := renderPrompt([]openai.ChatCompletionMessage{{Content: &text}})
	if got != "user: anonymous" {
		t.Errorf("prompt = %q", got)
	}
}

func TestExtractFunctions(t *testing.T) {
	req := &openai.ChatCompletionRequest{
		Tools: []openai.Tool{
			{Type: "function", Function: openai.FunctionTool{Name: "a"}},
			{Type: "retrieval", Function: openai.FunctionTool{Name: "ignored"}},
			{Type: "function", Function: openai.FunctionTool{}},
		},
		Functions: []openai.FunctionTool{{Name: "b"}},
	}
	specs := extractFunctions(req)
	if len(specs) != 2 {
		t.Fatalf("len(specs) = %d, want 2", len(specs))
	}
	if specs[0].Name != "a" || specs[1].Name != "b" {
		t.Errorf("specs = %+v", specs)
	}
}
