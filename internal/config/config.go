// Package config loads the agentwrap configuration from config.yaml and
// AGENTWRAP_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Agent     AgentConfig     `koanf:"agent"`
	Bridge    BridgeConfig    `koanf:"bridge"`
	Models    []ModelListItem `koanf:"models"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns the listen address for the API server.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type AgentConfig struct {
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
	WorkDir string   `koanf:"workdir"`
	Env     []string `koanf:"env"`
	// Model is written into the agent's persistent config at startup when
	// ConfigPath is set.
	Model string `koanf:"model"`
	// Timeout bounds one agent run, as a duration string like "10m".
	Timeout string `koanf:"timeout"`
	// ConfigPath is the agent's persistent config file, maintained at
	// startup. Empty disables maintenance.
	ConfigPath string `koanf:"config_path"`
	// Skills are bundle directories installed into SkillsDir at startup.
	Skills    []string `koanf:"skills"`
	SkillsDir string   `koanf:"skills_dir"`
}

// RunTimeout parses the agent timeout, validated at load time.
func (a AgentConfig) RunTimeout() time.Duration {
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

type BridgeConfig struct {
	Host string `koanf:"host"`
	// Port 0 binds an ephemeral port.
	Port               int `koanf:"port"`
	TerminationDelayMS int `koanf:"termination_delay_ms"`
	GracePeriodMS      int `koanf:"grace_period_ms"`
}

// TerminationDelay is the tool-call debounce window.
func (b BridgeConfig) TerminationDelay() time.Duration {
	return time.Duration(b.TerminationDelayMS) * time.Millisecond
}

// GracePeriod is how long agent completion waits for an already scheduled
// termination before settling on the content outcome.
func (b BridgeConfig) GracePeriod() time.Duration {
	return time.Duration(b.GracePeriodMS) * time.Millisecond
}

type ModelListItem struct {
	ID      string `koanf:"id"`
	OwnedBy string `koanf:"owned_by"`
	Created int64  `koanf:"created"`
}

type StorageConfig struct {
	// Path is the sqlite file recording completed interactions. Empty
	// disables recording.
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Traces bool `koanf:"traces"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SlogLevel maps the configured level name to a slog level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (default config.yaml), overlays AGENTWRAP_ environment
// variables (AGENTWRAP_SERVER__PORT → server.port), and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// A missing file is fine, env vars carry the config.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("AGENTWRAP_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENTWRAP_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 11435)
	}
	if !k.Exists("agent.command") {
		k.Set("agent.command", "codex")
	}
	if !k.Exists("agent.timeout") {
		k.Set("agent.timeout", "10m")
	}
	if !k.Exists("bridge.host") {
		k.Set("bridge.host", "127.0.0.1")
	}
	if !k.Exists("bridge.termination_delay_ms") {
		k.Set("bridge.termination_delay_ms", 2000)
	}
	if !k.Exists("bridge.grace_period_ms") {
		k.Set("bridge.grace_period_ms", 2500)
	}
	if !k.Exists("logging.level") {
		k.Set("logging.level", "info")
	}
	if !k.Exists("logging.format") {
		k.Set("logging.format", "json")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := time.ParseDuration(cfg.Agent.Timeout); err != nil {
		return nil, fmt.Errorf("agent.timeout: %w", err)
	}

	if len(cfg.Models) == 0 {
		cfg.Models = []ModelListItem{{ID: "agentwrap-codex", OwnedBy: "agentwrap"}}
	}

	// Substitute ${VAR} references in path-like values.
	cfg.Storage.Path = substituteEnvVars(cfg.Storage.Path)
	cfg.Agent.WorkDir = substituteEnvVars(cfg.Agent.WorkDir)
	cfg.Agent.ConfigPath = substituteEnvVars(cfg.Agent.ConfigPath)
	cfg.Agent.SkillsDir = substituteEnvVars(cfg.Agent.SkillsDir)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
