// Package bridge turns one shared HTTP listener into a per-request tool
// plane: each in-flight chat completion registers its function specs under a
// request-scoped name prefix, a per-request ToolServer records the calls the
// agent makes, and a debounce timer converts call silence into a one-shot
// termination signal.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTerminationDelay is the debounce window applied when the
// configuration does not set one.
const DefaultTerminationDelay = 2000 * time.Millisecond

// Config configures a Bridge.
type Config struct {
	// Host and Port for the shared tool listener. Port 0 binds an ephemeral
	// port; the bound address is what agents are pointed at.
	Host string
	Port int
	// TerminationDelay is the per-request debounce window.
	TerminationDelay time.Duration
	// OnRecord, when set, observes every newly recorded tool call across all
	// requests.
	OnRecord func(ToolCallRecord)
	Logger   *slog.Logger
}

// Bridge owns the request registry and the shared tool listener. The zero
// value is not usable; construct with New.
type Bridge struct {
	host     string
	port     int
	delay    time.Duration
	onRecord func(ToolCallRecord)
	logger   *slog.Logger

	mu       sync.Mutex
	contexts map[string]*RequestContext
	listener net.Listener
	server   *http.Server
	baseURL  string
}

// RequestContext is one registered request: its id, its tool server, and the
// prefixed-to-original name mapping.
type RequestContext struct {
	ID     string
	Server *ToolServer

	names    map[string]string
	prefixed []string
}

// OriginalName resolves a prefixed tool name back to the client's name.
func (rc *RequestContext) OriginalName(prefixed string) (string, bool) {
	name, ok := rc.names[prefixed]
	return name, ok
}

// PrefixedNames returns the request's published tool names in spec order.
func (rc *RequestContext) PrefixedNames() []string {
	out := make([]string, len(rc.prefixed))
	copy(out, rc.prefixed)
	return out
}

// New builds a Bridge. The listener is not started until EnsureListener.
func New(cfg Config) *Bridge {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.TerminationDelay <= 0 {
		cfg.TerminationDelay = DefaultTerminationDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Bridge{
		host:     cfg.Host,
		port:     cfg.Port,
		delay:    cfg.TerminationDelay,
		onRecord: cfg.OnRecord,
		logger:   cfg.Logger,
		contexts: make(map[string]*RequestContext),
	}
}

// RegisterRequest creates a fresh request context over the client's function
// specs. Published names are prefixed with the new request id, so concurrent
// requests with identical function names never collide.
func (b *Bridge) RegisterRequest(functions []FunctionSpec) *RequestContext {
	id := newRequestID()

	prefixed := make([]FunctionSpec, len(functions))
	names := make(map[string]string, len(functions))
	order := make([]string, len(functions))
	for i, fn := range functions {
		pname := id + "_" + fn.Name
		prefixed[i] = FunctionSpec{
			Name:        pname,
			Description: fn.Description,
			Parameters:  fn.Parameters,
		}
		names[pname] = fn.Name
		order[i] = pname
	}

	srv := NewToolServer(prefixed, b.delay)
	rc := &RequestContext{ID: id, Server: srv, names: names, prefixed: order}
	srv.OnRecord = func(rec ToolCallRecord) {
		b.logger.Info("tool call recorded",
			slog.String("request_id", rc.ID),
			slog.String("tool", rec.Name),
		)
		if b.onRecord != nil {
			b.onRecord(rec)
		}
	}

	b.mu.Lock()
	b.contexts[id] = rc
	b.mu.Unlock()

	b.logger.Debug("request registered",
		slog.String("request_id", id),
		slog.Int("functions", len(functions)),
	)
	return rc
}

// UnregisterRequest removes a context and closes its tool server, cancelling
// any pending termination timer. Unknown ids are a no-op.
func (b *Bridge) UnregisterRequest(id string) {
	b.mu.Lock()
	rc, ok := b.contexts[id]
	delete(b.contexts, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	rc.Server.Close()
	b.logger.Debug("request unregistered", slog.String("request_id", id))
}

// ContextCount reports how many requests are currently registered.
func (b *Bridge) ContextCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contexts)
}

// resolveTool finds the context that owns a prefixed tool name.
func (b *Bridge) resolveTool(name string) (*RequestContext, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, rc := range b.contexts {
		if _, ok := rc.names[name]; ok {
			return rc, true
		}
	}
	return nil, false
}

// snapshot returns the live contexts without holding the registry lock
// during dispatch.
func (b *Bridge) snapshot() []*RequestContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*RequestContext, 0, len(b.contexts))
	for _, rc := range b.contexts {
		out = append(out, rc)
	}
	return out
}

// EnsureListener starts the shared listener on first use and returns its base
// URL. Later calls return the already bound address. Requests that carry no
// tools never cause the listener to start.
func (b *Bridge) EnsureListener() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener != nil {
		return b.baseURL, nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(b.host, strconv.Itoa(b.port)))
	if err != nil {
		return "", fmt.Errorf("bridge listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	b.listener = ln
	b.baseURL = "http://" + net.JoinHostPort(b.host, strconv.Itoa(port))
	b.server = &http.Server{
		Handler:           b.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := b.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("bridge server stopped", slog.String("error", err.Error()))
		}
	}()

	b.logger.Info("tool bridge listening", slog.String("addr", b.baseURL))
	return b.baseURL, nil
}

// BaseURL returns the bound listener address, empty before EnsureListener.
func (b *Bridge) BaseURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseURL
}

// Shutdown closes every live context and stops the shared listener.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	srv := b.server
	b.server = nil
	b.listener = nil
	b.baseURL = ""
	contexts := make([]*RequestContext, 0, len(b.contexts))
	for _, rc := range b.contexts {
		contexts = append(contexts, rc)
	}
	b.contexts = make(map[string]*RequestContext)
	b.mu.Unlock()

	for _, rc := range contexts {
		rc.Server.Close()
	}
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}
