package bridge

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FunctionSpec describes one callable function as supplied by the API client.
// Parameters is the client's JSON schema, passed through untouched.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCallRecord is one recorded tools/call. Name is the name exactly as the
// agent called it (prefixed); Arguments is the raw argument JSON exactly as
// received.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDescriptor is the wire shape served by tools/list.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// ToolServer records the tool calls one request's agent makes and converts
// call silence into a termination signal: every newly recorded call
// (re)schedules a debounce timer, and when the timer finally fires the server
// delivers a snapshot of all recorded calls on Terminated, exactly once.
//
// A call whose (name, arguments) serialization matches an already recorded
// call is dropped: it is not re-recorded and does not restart the timer.
type ToolServer struct {
	functions []FunctionSpec
	delay     time.Duration

	// OnRecord, when set before the server starts receiving traffic, is
	// invoked for every newly recorded call. Drops and duplicates are not
	// announced.
	OnRecord func(ToolCallRecord)

	mu     sync.Mutex
	calls  []ToolCallRecord
	seen   map[string]struct{}
	timer  *time.Timer
	fired  bool
	closed bool
	done   chan []ToolCallRecord
}

// NewToolServer builds a server over the request's prefixed function specs.
func NewToolServer(functions []FunctionSpec, delay time.Duration) *ToolServer {
	return &ToolServer{
		functions: functions,
		delay:     delay,
		seen:      make(map[string]struct{}),
		done:      make(chan []ToolCallRecord, 1),
	}
}

// Descriptors returns the tools/list view of this server's functions. A spec
// without parameters gets the permissive empty object schema.
func (s *ToolServer) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, len(s.functions))
	for i, fn := range s.functions {
		schema := fn.Parameters
		if len(schema) == 0 {
			schema = emptyObjectSchema
		}
		out[i] = ToolDescriptor{Name: fn.Name, Description: fn.Description, InputSchema: schema}
	}
	return out
}

// Call records a tool invocation and (re)schedules the termination timer.
// The returned record is the stored one. dropped reports that the call
// matched an existing record, or arrived after Close, and was discarded
// without touching the timer.
func (s *ToolServer) Call(name string, args json.RawMessage) (ToolCallRecord, bool) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	key := name + ":" + string(args)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ToolCallRecord{Name: name, Arguments: string(args)}, true
	}
	if _, ok := s.seen[key]; ok {
		s.mu.Unlock()
		return ToolCallRecord{Name: name, Arguments: string(args)}, true
	}
	rec := ToolCallRecord{
		ID:        newCallID(),
		Name:      name,
		Arguments: string(args),
	}
	s.seen[key] = struct{}{}
	s.calls = append(s.calls, rec)
	s.scheduleLocked()
	onRecord := s.OnRecord
	s.mu.Unlock()

	if onRecord != nil {
		onRecord(rec)
	}
	return rec, false
}

// scheduleLocked arms the debounce timer, cancelling any pending firing.
// Once the termination signal has been delivered the timer stays dead.
func (s *ToolServer) scheduleLocked() {
	if s.fired {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.terminate)
}

func (s *ToolServer) terminate() {
	s.mu.Lock()
	if s.fired || s.closed {
		s.mu.Unlock()
		return
	}
	s.fired = true
	snapshot := make([]ToolCallRecord, len(s.calls))
	copy(snapshot, s.calls)
	s.mu.Unlock()

	s.done <- snapshot
}

// Terminated returns the one-shot termination channel. It delivers the
// recorded-call snapshot at most once for the lifetime of the server.
func (s *ToolServer) Terminated() <-chan []ToolCallRecord {
	return s.done
}

// CallCount reports how many calls have been recorded so far.
func (s *ToolServer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Calls returns a copy of the records in arrival order.
func (s *ToolServer) Calls() []ToolCallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCallRecord, len(s.calls))
	copy(out, s.calls)
	return out
}

// Close cancels any pending timer and stops the server from recording or
// terminating. Idempotent.
func (s *ToolServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}
