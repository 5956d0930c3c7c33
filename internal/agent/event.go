// Package agent launches the external reasoning-agent CLI and decodes its
// JSONL event stream. One process serves exactly one run: prompt in, events
// out, exit.
package agent

import (
	"bytes"
	"encoding/json"
)

// EventType discriminates the agent's stream events.
type EventType string

const (
	EventThreadStarted    EventType = "thread_started"
	EventTurnStarted      EventType = "turn_started"
	EventReasoning        EventType = "reasoning"
	EventCommandExecution EventType = "command_execution"
	EventSkillInvoked     EventType = "skill_invoked"
	EventMessage          EventType = "message"
	EventTurnCompleted    EventType = "turn_completed"
	EventError            EventType = "error"
)

// Event is one decoded line of the agent's JSONL output. Fields beyond Type
// are populated per variant: Text for reasoning and message, Command/Output/
// ExitCode for command execution, Skill for skill invocation, Usage for turn
// completion, Message for errors.
type Event struct {
	Type     EventType   `json:"type"`
	ThreadID string      `json:"thread_id,omitempty"`
	Text     string      `json:"text,omitempty"`
	Command  string      `json:"command,omitempty"`
	Output   string      `json:"output,omitempty"`
	ExitCode *int        `json:"exit_code,omitempty"`
	Skill    string      `json:"skill,omitempty"`
	Usage    *TokenUsage `json:"usage,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// TokenUsage is the token accounting reported on turn_completed.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ParseEvent decodes one JSONL line. Lines that are not valid JSON or carry
// an unrecognized type report ok=false and are skipped by the runner.
func ParseEvent(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, false
	}
	switch ev.Type {
	case EventThreadStarted, EventTurnStarted, EventReasoning, EventCommandExecution,
		EventSkillInvoked, EventMessage, EventTurnCompleted, EventError:
		return ev, true
	default:
		return Event{}, false
	}
}
