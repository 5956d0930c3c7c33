package frontdoor

import (
	"strings"

	"github.com/agentwrap/agentwrap/internal/agent"
)

// synthesis folds the agent's event stream into response material. The same
// observer serves streaming and non-streaming requests: when emit is set,
// every rendered segment is forwarded to the client the moment it arrives;
// the final assistant content is always the concatenation of message events
// only, so the two modes cannot drift apart.
type synthesis struct {
	emit func(segment string)

	messages   strings.Builder
	transcript strings.Builder
	usage      *agent.TokenUsage
	errMsg     string
}

func (s *synthesis) observe(ev agent.Event) {
	switch ev.Type {
	case agent.EventReasoning:
		s.push("[Reasoning] " + ev.Text + "\n")
	case agent.EventCommandExecution:
		seg := "[Command] " + ev.Command + "\n"
		if ev.Output != "" {
			seg += ev.Output + "\n"
		}
		s.push(seg)
	case agent.EventSkillInvoked:
		s.push("[Skill] " + ev.Skill + "\n")
	case agent.EventMessage:
		s.messages.WriteString(ev.Text)
		s.push(ev.Text)
	case agent.EventTurnCompleted:
		if ev.Usage != nil {
			s.usage = ev.Usage
		}
	case agent.EventError:
		s.errMsg = ev.Message
	}
}

func (s *synthesis) push(seg string) {
	if seg == "" {
		return
	}
	s.transcript.WriteString(seg)
	if s.emit != nil {
		s.emit(seg)
	}
}

// Content is the assistant answer: message events only.
func (s *synthesis) Content() string {
	return s.messages.String()
}

// Transcript is everything rendered, kept for the interaction record.
func (s *synthesis) Transcript() string {
	return s.transcript.String()
}
