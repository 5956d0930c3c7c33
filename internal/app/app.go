// Package app assembles the agentwrap service: configuration, telemetry,
// metrics, the interaction recorder, the tool-call bridge, the agent runner,
// and the HTTP front door, with a single Start/Shutdown lifecycle. App can be
// embedded in larger programs or run standalone via cmd/agentwrap.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/agentwrap/agentwrap/internal/agent"
	"github.com/agentwrap/agentwrap/internal/bridge"
	"github.com/agentwrap/agentwrap/internal/config"
	"github.com/agentwrap/agentwrap/internal/frontdoor"
	"github.com/agentwrap/agentwrap/internal/metrics"
	"github.com/agentwrap/agentwrap/internal/record"
	"github.com/agentwrap/agentwrap/internal/server"
	"github.com/agentwrap/agentwrap/internal/telemetry"
	"github.com/agentwrap/agentwrap/internal/tokens"
)

// App is the assembled service.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	runner   agent.Runner
	recorder *record.Recorder
	metrics  *metrics.Metrics
	bridge   *bridge.Bridge
	server   *server.Server

	tracerShutdown func(context.Context) error

	mu      sync.Mutex
	started bool
}

// Option is a functional option for configuring an App.
type Option func(*App) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		a.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from path (plus environment overlays).
func WithConfigFile(path string) Option {
	return func(a *App) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithRunner replaces the CLI agent runner, mainly for tests and embedders
// that bring their own agent.
func WithRunner(r agent.Runner) Option {
	return func(a *App) error {
		a.runner = r
		return nil
	}
}

// New creates an App with the given options.
func New(opts ...Option) (*App, error) {
	a := &App{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}

	return a, nil
}

// Start wires the components and begins serving. It returns once the API
// listener is bound.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("already started")
	}

	shutdown, err := telemetry.InitTracer("agentwrap", a.cfg.Telemetry.Traces, a.logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tracerShutdown = shutdown

	a.metrics = metrics.New()

	if path := a.cfg.Storage.Path; path != "" {
		rec, err := record.Open(path)
		if err != nil {
			return fmt.Errorf("open interaction store: %w", err)
		}
		a.recorder = rec
		a.logger.Info("interaction recording enabled", slog.String("path", path))
	}

	a.bridge = bridge.New(bridge.Config{
		Host:             a.cfg.Bridge.Host,
		Port:             a.cfg.Bridge.Port,
		TerminationDelay: a.cfg.Bridge.TerminationDelay(),
		OnRecord:         func(bridge.ToolCallRecord) { a.metrics.RecordToolCall() },
		Logger:           a.logger,
	})
	a.metrics.ObserveBridgeContexts(a.bridge.ContextCount)

	if err := a.maintainAgentConfig(); err != nil {
		return err
	}

	if a.runner == nil {
		r := agent.NewCLIRunner(a.cfg.Agent.Command, a.cfg.Agent.Args, a.logger)
		r.WorkDir = a.cfg.Agent.WorkDir
		r.Env = a.cfg.Agent.Env
		a.runner = r
	}

	fd := frontdoor.New(frontdoor.Config{
		Runner:      a.runner,
		Bridge:      a.bridge,
		Counter:     tokens.NewCounter(),
		Recorder:    a.recorder,
		Metrics:     a.metrics,
		Models:      a.cfg.Models,
		RunTimeout:  a.cfg.Agent.RunTimeout(),
		GracePeriod: a.cfg.Bridge.GracePeriod(),
		Logger:      a.logger,
	})

	a.server = server.New(a.cfg.Server.Addr(), a.logger)
	fd.Routes(a.server.Router)
	a.server.Router.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	a.started = true
	a.logger.Info("agentwrap started",
		slog.String("addr", a.server.Addr()),
		slog.String("agent", a.cfg.Agent.Command),
		slog.Int("models", len(a.cfg.Models)),
	)
	return nil
}

// maintainAgentConfig reconciles the agent's persistent config file with the
// service configuration: pins the model and installs skill bundles. Skipped
// entirely when no config path is set.
func (a *App) maintainAgentConfig() error {
	ac := a.cfg.Agent
	if ac.ConfigPath == "" {
		return nil
	}

	doc, err := agent.LoadFileConfig(ac.ConfigPath)
	if err != nil {
		return fmt.Errorf("load agent config: %w", err)
	}

	changed := false
	if ac.Model != "" && doc.Model != ac.Model {
		doc.Model = ac.Model
		changed = true
	}

	if len(ac.Skills) > 0 && ac.SkillsDir == "" {
		return fmt.Errorf("agent.skills_dir is required when agent.skills is set")
	}
	for _, src := range ac.Skills {
		skill, err := agent.InstallSkill(src, ac.SkillsDir)
		if err != nil {
			return fmt.Errorf("install skill: %w", err)
		}
		if upsertSkill(doc, skill) {
			changed = true
		}
		a.logger.Info("installed agent skill",
			slog.String("name", skill.Name),
			slog.String("path", skill.Path),
		)
	}

	if changed {
		if err := doc.Save(ac.ConfigPath); err != nil {
			return fmt.Errorf("save agent config: %w", err)
		}
	}
	return nil
}

func upsertSkill(doc *agent.FileConfig, skill agent.SkillConfig) bool {
	for i, s := range doc.Skills {
		if s.Name == skill.Name {
			if s == skill {
				return false
			}
			doc.Skills[i] = skill
			return true
		}
	}
	doc.Skills = append(doc.Skills, skill)
	return true
}

// Addr is the bound API address, empty before Start.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

// Shutdown stops the API server, the bridge listener, the recorder, and the
// tracer, in that order. Errors are logged and the first one is returned.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down")

	var firstErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			firstErr = err
		}
	}
	if a.bridge != nil {
		if err := a.bridge.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown bridge", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := a.recorder.Close(); err != nil {
		a.logger.Error("failed to close recorder", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	a.started = false
	a.logger.Info("shutdown complete")
	return firstErr
}
