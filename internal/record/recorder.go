// Package record persists completed interactions to SQLite for later
// inspection. Recording is optional: a nil Recorder is safe to call and
// does nothing, so the request path never depends on storage being
// configured.
package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentwrap/agentwrap/internal/api/openai"
)

// Interaction is one completed chat-completion exchange.
type Interaction struct {
	ID           string
	Model        string
	Streaming    bool
	FinishReason string
	PromptChars  int
	Content      string
	ToolCalls    []openai.ToolCall
	ErrorMessage string
	Duration     time.Duration
	CreatedAt    time.Time
}

// Recorder writes interactions to a SQLite database.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and prepares the
// schema. The caller owns the returned Recorder and must Close it.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	r := &Recorder{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return r, nil
}

func (r *Recorder) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			streaming INTEGER NOT NULL DEFAULT 0,
			finish_reason TEXT,
			prompt_chars INTEGER NOT NULL DEFAULT 0,
			content TEXT,
			tool_calls TEXT,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_model ON interactions(model)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Save inserts one interaction. Safe to call on a nil Recorder.
func (r *Recorder) Save(ctx context.Context, in *Interaction) error {
	if r == nil || r.db == nil {
		return nil
	}

	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}

	var finishReason, content, toolCalls, errorMessage sql.NullString
	if in.FinishReason != "" {
		finishReason = sql.NullString{String: in.FinishReason, Valid: true}
	}
	if in.Content != "" {
		content = sql.NullString{String: in.Content, Valid: true}
	}
	if len(in.ToolCalls) > 0 {
		callsJSON, err := json.Marshal(in.ToolCalls)
		if err != nil {
			return fmt.Errorf("failed to marshal tool calls: %w", err)
		}
		toolCalls = sql.NullString{String: string(callsJSON), Valid: true}
	}
	if in.ErrorMessage != "" {
		errorMessage = sql.NullString{String: in.ErrorMessage, Valid: true}
	}

	streaming := 0
	if in.Streaming {
		streaming = 1
	}

	query := `INSERT INTO interactions (
		id, model, streaming, finish_reason, prompt_chars,
		content, tool_calls, error_message, duration_ns, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		in.ID, in.Model, streaming, finishReason, in.PromptChars,
		content, toolCalls, errorMessage, int64(in.Duration), in.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	return nil
}

// Get retrieves one interaction by id.
func (r *Recorder) Get(ctx context.Context, id string) (*Interaction, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("recorder not configured")
	}

	query := `SELECT id, model, streaming, finish_reason, prompt_chars,
		content, tool_calls, error_message, duration_ns, created_at
	FROM interactions WHERE id = ?`

	var in Interaction
	var streaming int
	var durationNs int64
	var finishReason, content, toolCalls, errorMessage sql.NullString

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&in.ID, &in.Model, &streaming, &finishReason, &in.PromptChars,
		&content, &toolCalls, &errorMessage, &durationNs, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("interaction %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}

	in.Streaming = streaming == 1
	in.Duration = time.Duration(durationNs)
	if finishReason.Valid {
		in.FinishReason = finishReason.String
	}
	if content.Valid {
		in.Content = content.String
	}
	if toolCalls.Valid {
		if err := json.Unmarshal([]byte(toolCalls.String), &in.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
	}
	if errorMessage.Valid {
		in.ErrorMessage = errorMessage.String
	}

	return &in, nil
}

// ListRecent returns up to limit interactions, newest first.
func (r *Recorder) ListRecent(ctx context.Context, limit int) ([]*Interaction, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id FROM interactions ORDER BY created_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan interaction id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate interactions: %w", err)
	}

	out := make([]*Interaction, 0, len(ids))
	for _, id := range ids {
		in, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}

	return out, nil
}

// Close releases the underlying database handle. Safe on nil.
func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
