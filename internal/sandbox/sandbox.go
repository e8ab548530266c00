package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProvision wraps every failure to create a sandbox.
	ErrProvision = errors.New("sandbox provisioning failed")
	// ErrKilled is returned by operations on a sandbox after Kill.
	ErrKilled = errors.New("sandbox has been killed")
)

// TimeoutExitCode is the exit code reported when a command exceeds its time
// limit. It matches coreutils timeout(1).
const TimeoutExitCode = 124

// Result is the outcome of one command. A failing user program is reported
// here through ExitCode and Stderr, never as an error.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimeMs   int64
}

// Config holds per-sandbox resource settings.
type Config struct {
	Image          string
	MemoryLimitKb  int
	CommandTimeout time.Duration
	PidsLimit      int64
	MaxOutputBytes int
}

// Sandbox is one live, isolated execution environment. A Sandbox is owned by a
// single grading run and is not safe for concurrent commands.
type Sandbox interface {
	ID() string
	// UploadFile writes content to an absolute path, replacing any previous file.
	UploadFile(ctx context.Context, content []byte, path string) error
	// ExecuteCommand runs a shell command to completion in workDir.
	ExecuteCommand(ctx context.Context, command, workDir string) (*Result, error)
	// Kill tears the environment down. It is safe to call more than once.
	Kill(ctx context.Context) error
}

// Provider provisions sandboxes.
type Provider interface {
	Create(ctx context.Context, language string, cfg Config) (Sandbox, error)
	EnsureImage(ctx context.Context, image string) error
}

const timeLimitMessage = "time limit exceeded"

func withDefaults(cfg Config) Config {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	if cfg.MemoryLimitKb <= 0 {
		cfg.MemoryLimitKb = 256 * 1024
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = 64
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = 1 << 20
	}
	return cfg
}

// timedOut reports whether a command killed by timeout(1) hit its limit. A
// program exiting with 124 on its own before the limit is not a timeout.
func timedOut(exitCode int, elapsed, limit time.Duration) bool {
	return exitCode == TimeoutExitCode && elapsed >= limit
}

func appendTimeout(stderr string, limit time.Duration) string {
	msg := timeLimitMessage + " (" + limit.String() + ")"
	if stderr == "" {
		return msg
	}
	return stderr + "\n" + msg
}
