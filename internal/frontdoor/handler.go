// Package frontdoor serves the OpenAI-compatible surface: chat completions
// (plain and tool-calling, streaming and not) and the model listing. Tool
// calling never executes anything locally; recorded calls are returned to the
// client with finish_reason "tool_calls" and the conversation resumes on the
// client's next request.
package frontdoor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentwrap/agentwrap/internal/agent"
	"github.com/agentwrap/agentwrap/internal/api/openai"
	"github.com/agentwrap/agentwrap/internal/bridge"
	"github.com/agentwrap/agentwrap/internal/config"
	"github.com/agentwrap/agentwrap/internal/metrics"
	"github.com/agentwrap/agentwrap/internal/record"
	"github.com/agentwrap/agentwrap/internal/server"
	"github.com/agentwrap/agentwrap/internal/tokens"
)

// Handler answers the OpenAI-compatible routes.
type Handler struct {
	runner      agent.Runner
	bridge      *bridge.Bridge
	counter     *tokens.Counter
	recorder    *record.Recorder
	metrics     *metrics.Metrics
	models      []config.ModelListItem
	runTimeout  time.Duration
	gracePeriod time.Duration
	logger      *slog.Logger

	// startedAt backfills created timestamps for models configured
	// without one.
	startedAt int64
}

// Config carries the handler's collaborators. Runner and Bridge are required
// for tool-calling requests; Recorder and Metrics may be nil.
type Config struct {
	Runner      agent.Runner
	Bridge      *bridge.Bridge
	Counter     *tokens.Counter
	Recorder    *record.Recorder
	Metrics     *metrics.Metrics
	Models      []config.ModelListItem
	RunTimeout  time.Duration
	GracePeriod time.Duration
	Logger      *slog.Logger
}

// New builds a Handler.
func New(cfg Config) *Handler {
	if cfg.Counter == nil {
		cfg.Counter = tokens.NewCounter()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		runner:      cfg.Runner,
		bridge:      cfg.Bridge,
		counter:     cfg.Counter,
		recorder:    cfg.Recorder,
		metrics:     cfg.Metrics,
		models:      cfg.Models,
		runTimeout:  cfg.RunTimeout,
		gracePeriod: cfg.GracePeriod,
		logger:      cfg.Logger,
		startedAt:   time.Now().Unix(),
	}
}

// Routes mounts the OpenAI surface on a router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/chat/completions", h.HandleChatCompletion)
	r.Get("/v1/models", h.HandleListModels)
	r.Get("/v1/models/{id}", h.HandleGetModel)
}

func (h *Handler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}

	var req openai.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request JSON: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	server.AddLogField(r.Context(), "model", req.Model)
	server.AddLogField(r.Context(), "streaming", strconv.FormatBool(req.Stream))

	specs := extractFunctions(&req)
	if len(specs) > 0 && h.bridge == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "tool calling is not configured")
		return
	}

	prompt := renderPrompt(req.Messages)

	ctx := r.Context()
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	if req.Stream {
		h.handleStream(ctx, w, &req, prompt, specs, start)
		return
	}
	h.handleSync(ctx, w, &req, prompt, specs, start)
}

func (h *Handler) handleSync(ctx context.Context, w http.ResponseWriter, req *openai.ChatCompletionRequest, prompt string, specs []bridge.FunctionSpec, start time.Time) {
	syn := &synthesis{}
	out := h.execute(ctx, prompt, specs, syn)

	id := openai.NewResponseID()

	if out.state == failed {
		server.AddLogField(ctx, "error", out.errMsg)
		h.finish(id, req.Model, "error", false, prompt, syn, out, start)
		writeError(w, http.StatusInternalServerError, "internal_error", out.errMsg)
		return
	}

	resp := &openai.ChatCompletionResponse{
		ID:      id,
		Object:  openai.ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   req.Model,
		Usage:   h.usageFor(syn, req.Model, prompt),
	}

	switch out.state {
	case terminatedByToolCall:
		resp.Choices = []openai.Choice{{
			Message: openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   nil,
				ToolCalls: out.toolCalls,
			},
			FinishReason: openai.FinishReasonToolCalls,
		}}
	default:
		content := syn.Content()
		resp.Choices = []openai.Choice{{
			Message: openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: &content,
			},
			FinishReason: openai.FinishReasonStop,
		}}
	}

	reason := resp.Choices[0].FinishReason
	server.AddLogField(ctx, "finish_reason", reason)
	if len(out.toolCalls) > 0 {
		server.AddLogField(ctx, "tool_calls", strconv.Itoa(len(out.toolCalls)))
	}
	h.finish(id, req.Model, reason, false, prompt, syn, out, start)

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStream(ctx context.Context, w http.ResponseWriter, req *openai.ChatCompletionRequest, prompt string, specs []bridge.FunctionSpec, start time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := openai.NewResponseID()
	created := time.Now().Unix()

	writeSSE := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			h.logger.Error("failed to encode stream chunk", slog.String("error", err.Error()))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	sendChunk := func(c *openai.ChatCompletionChunk) {
		c.Created = created
		writeSSE(c)
	}

	sendChunk(openai.NewRoleChunk(id, req.Model))

	syn := &synthesis{emit: func(seg string) {
		sendChunk(openai.NewContentChunk(id, req.Model, seg))
	}}
	out := h.execute(ctx, prompt, specs, syn)

	var reason string
	switch out.state {
	case terminatedByToolCall:
		reason = openai.FinishReasonToolCalls
		sendChunk(openai.NewToolCallsChunk(id, req.Model, out.toolCalls))
		sendChunk(openai.NewFinishChunk(id, req.Model, reason))
	case failed:
		reason = "error"
		server.AddLogField(ctx, "error", out.errMsg)
		// In-band error replaces the finish chunk; the stream still
		// closes with the sentinel.
		writeSSE(openai.NewErrorResponse("internal_error", out.errMsg))
	default:
		reason = openai.FinishReasonStop
		sendChunk(openai.NewFinishChunk(id, req.Model, reason))
	}

	if out.state != failed && req.StreamOptions != nil && req.StreamOptions.IncludeUsage {
		usage := h.usageFor(syn, req.Model, prompt)
		c := &openai.ChatCompletionChunk{
			ID:      id,
			Object:  openai.ObjectChatCompletionChunk,
			Model:   req.Model,
			Choices: []openai.ChunkChoice{},
			Usage:   &usage,
		}
		sendChunk(c)
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()

	server.AddLogField(ctx, "finish_reason", reason)
	if len(out.toolCalls) > 0 {
		server.AddLogField(ctx, "tool_calls", strconv.Itoa(len(out.toolCalls)))
	}
	h.finish(id, req.Model, reason, true, prompt, syn, out, start)
}

// finish records the interaction and bumps the request counter. Both sinks
// are optional and never fail the request.
func (h *Handler) finish(id, model, reason string, streaming bool, prompt string, syn *synthesis, out outcome, start time.Time) {
	h.metrics.RecordRequest(reason, streaming)

	finishReason := reason
	if out.state == failed {
		finishReason = ""
	}

	// Persist off the request context so a client disconnect does not
	// drop the record.
	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := &record.Interaction{
		ID:           id,
		Model:        model,
		Streaming:    streaming,
		FinishReason: finishReason,
		PromptChars:  len(prompt),
		Content:      syn.Transcript(),
		ToolCalls:    out.toolCalls,
		ErrorMessage: out.errMsg,
		Duration:     time.Since(start),
	}
	if err := h.recorder.Save(persistCtx, in); err != nil {
		h.logger.Error("failed to record interaction",
			slog.String("interaction_id", id),
			slog.String("error", err.Error()),
		)
	}
}

func (h *Handler) usageFor(syn *synthesis, model, prompt string) openai.Usage {
	if syn.usage != nil {
		return openai.Usage{
			PromptTokens:     syn.usage.InputTokens,
			CompletionTokens: syn.usage.OutputTokens,
			TotalTokens:      syn.usage.InputTokens + syn.usage.OutputTokens,
		}
	}
	promptTokens, completionTokens := h.counter.Estimate(model, prompt, syn.Content())
	return openai.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openai.ModelList{Object: openai.ObjectList, Data: h.modelData()})
}

func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, m := range h.modelData() {
		if m.ID == id {
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeError(w, http.StatusNotFound, "invalid_request_error", fmt.Sprintf("model %q not found", id))
}

func (h *Handler) modelData() []openai.Model {
	out := make([]openai.Model, len(h.models))
	for i, m := range h.models {
		created := m.Created
		if created == 0 {
			created = h.startedAt
		}
		ownedBy := m.OwnedBy
		if ownedBy == "" {
			ownedBy = "agentwrap"
		}
		out[i] = openai.Model{
			ID:      m.ID,
			Object:  openai.ObjectModel,
			Created: created,
			OwnedBy: ownedBy,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, openai.NewErrorResponse(errType, message))
}
