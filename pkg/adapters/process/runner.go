package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/aretw0/yol/internal/logging"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/aretw0/yol/pkg/identity"
)

// Environment variables set for every command.
const (
	EnvRunner    = "YOL_RUNNER"
	EnvTarget    = "YOL_TARGET"
	EnvPrincipal = "YOL_PRINCIPAL"
)

// maxLoggedOutput bounds the stderr kept in logs and errors.
const maxLoggedOutput = 4 << 10

// Runner turns allow-listed commands into transition actions.
type Runner struct {
	registry map[string]Command
	baseDir  string
	env      []string
	logger   *slog.Logger
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list.
func WithRegistry(commands map[string]Command) RunnerOption {
	return func(r *Runner) {
		for name, cmd := range commands {
			r.registry[name] = cmd
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithEnv adds KEY=VALUE pairs to the environment of every command.
func WithEnv(env map[string]string) RunnerOption {
	return func(r *Runner) {
		r.env = append(r.env, environ(env)...)
	}
}

// WithLogger sets the logger receiving command output.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a new process runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]Command),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = Command{Command: command, Args: args}
}

// Action returns an action running the registered command name.
// The command is resolved when the action runs, so it may be registered later.
func (r *Runner) Action(runner, target, name string) domain.Action {
	return func(ctx context.Context) (bool, error) {
		cmd, ok := r.registry[name]
		if !ok {
			return false, fmt.Errorf("process: command not registered: %s", name)
		}
		return r.run(ctx, runner, target, cmd)
	}
}

// ActionFor returns an action running cmd directly.
func (r *Runner) ActionFor(runner, target string, cmd Command) domain.Action {
	return func(ctx context.Context) (bool, error) {
		if err := cmd.Validate(); err != nil {
			return false, err
		}
		return r.run(ctx, runner, target, cmd)
	}
}

// run executes cmd. A non-zero exit reports false; a command that cannot be
// started reports an error.
func (r *Runner) run(ctx context.Context, runner, target string, cmd Command) (bool, error) {
	c := exec.CommandContext(ctx, cmd.Command, cmd.Args...)
	c.Dir = r.baseDir
	if cmd.Dir != "" {
		c.Dir = cmd.Dir
	}

	env := append(c.Environ(), r.env...)
	env = append(env, environ(cmd.Env)...)
	env = append(env, EnvRunner+"="+runner, EnvTarget+"="+target)
	if p, ok := identity.PrincipalFrom(ctx); ok {
		env = append(env, EnvPrincipal+"="+p.Login)
	}
	c.Env = env

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log := r.logger.With("runner", runner, "target", target, "command", cmd.String())
	log.Debug("Running command")

	err := c.Run()
	if out := strings.TrimSpace(stdout.String()); out != "" {
		log.Info("Command output", "stdout", truncate(out))
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Warn("Command failed",
			"exit_code", exitErr.ExitCode(),
			"stderr", truncate(strings.TrimSpace(stderr.String())),
		)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("process: run %s: %w", cmd.Command, err)
	}
	return true, nil
}

func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func truncate(s string) string {
	if len(s) <= maxLoggedOutput {
		return s
	}
	return s[:maxLoggedOutput] + "..."
}
