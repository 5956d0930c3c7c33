package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// maxEventLine bounds a single JSONL line; command output events can be
// large.
const maxEventLine = 10 * 1024 * 1024

// Input describes one agent run.
type Input struct {
	// Prompt is written to the agent's stdin.
	Prompt string
	// Overrides are per-run configuration assignments, each passed to the
	// CLI as a -c flag.
	Overrides []string
}

// Runner launches one agent process per call. The returned channel closes
// when the process exits; cancelling the context forcibly halts the run.
type Runner interface {
	Run(ctx context.Context, input Input) (<-chan Event, error)
}

// CLIRunner runs the external agent CLI in single-shot JSON mode.
type CLIRunner struct {
	Command string
	// Args precede the per-run override flags. Defaults to exec --json.
	Args    []string
	WorkDir string
	Env     []string
	Logger  *slog.Logger
}

// NewCLIRunner builds a runner for the given command, defaulting the args to
// the CLI's single-shot JSON mode.
func NewCLIRunner(command string, args []string, logger *slog.Logger) *CLIRunner {
	if command == "" {
		command = "codex"
	}
	if args == nil {
		args = []string{"exec", "--json"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIRunner{Command: command, Args: args, Logger: logger}
}

// Run starts the agent process and streams its events. The process gets an
// interrupt on context cancellation and a hard kill if it lingers.
func (r *CLIRunner) Run(ctx context.Context, input Input) (<-chan Event, error) {
	args := make([]string, 0, len(r.Args)+2*len(input.Overrides))
	args = append(args, r.Args...)
	for _, override := range input.Overrides {
		args = append(args, "-c", override)
	}

	cmd := exec.CommandContext(ctx, r.Command, args...)
	cmd.Dir = r.WorkDir
	if r.Env != nil {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdin = strings.NewReader(input.Prompt)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("agent stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start agent %q: %w", r.Command, err)
	}
	r.Logger.Debug("agent started",
		slog.String("command", r.Command),
		slog.Int("pid", cmd.Process.Pid),
	)

	events := make(chan Event, 16)
	go r.pump(cmd, stdout, &stderr, events)
	return events, nil
}

// pump decodes stdout lines into events, reaps the process, and closes the
// channel. A failed exit that produced no error event of its own is surfaced
// as a trailing error event carrying stderr.
func (r *CLIRunner) pump(cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer, events chan<- Event) {
	defer close(events)

	sawError := false
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	for scanner.Scan() {
		ev, ok := ParseEvent(scanner.Bytes())
		if !ok {
			r.Logger.Debug("skipping unrecognized agent output",
				slog.String("line", truncate(scanner.Text(), 200)),
			)
			continue
		}
		if ev.Type == EventError {
			sawError = true
		}
		events <- ev
	}
	if err := scanner.Err(); err != nil {
		r.Logger.Warn("reading agent output", slog.String("error", err.Error()))
	}

	err := cmd.Wait()
	r.Logger.Debug("agent exited",
		slog.Int("pid", cmd.Process.Pid),
		slog.Bool("success", err == nil),
	)
	if err != nil && !sawError {
		events <- Event{Type: EventError, Message: exitMessage(err, stderr)}
	}
}

func exitMessage(err error, stderr *bytes.Buffer) string {
	msg := strings.TrimSpace(stderr.String())
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if msg != "" {
			return fmt.Sprintf("agent exited with status %d: %s", exitErr.ExitCode(), msg)
		}
		return fmt.Sprintf("agent exited with status %d", exitErr.ExitCode())
	}
	if msg != "" {
		return fmt.Sprintf("%v: %s", err, msg)
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
