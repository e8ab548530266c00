package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultInterpreters maps a sandbox language to the binary that must be on
// PATH for LocalProvider to accept it.
var DefaultInterpreters = map[string]string{
	"python":     "python3",
	"javascript": "node",
	"typescript": "bun",
}

// LocalProvider runs commands as host processes inside a private temporary
// directory. It is meant for development and tests and offers no isolation
// beyond the filesystem root it maps sandbox paths into.
type LocalProvider struct {
	Interpreters map[string]string
	logger       *zerolog.Logger
}

func NewLocalProvider(logger *zerolog.Logger) *LocalProvider {
	interps := make(map[string]string, len(DefaultInterpreters))
	for k, v := range DefaultInterpreters {
		interps[k] = v
	}
	return &LocalProvider{Interpreters: interps, logger: logger}
}

func (p *LocalProvider) Create(ctx context.Context, language string, cfg Config) (Sandbox, error) {
	bin, ok := p.Interpreters[language]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported runtime %q", ErrProvision, language)
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("%w: runtime %q not available: %v", ErrProvision, bin, err)
	}

	root, err := os.MkdirTemp("", "gradebox-sandbox-*")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %v", ErrProvision, err)
	}

	s := &localSandbox{
		id:     "local-" + uuid.NewString(),
		root:   root,
		cfg:    withDefaults(cfg),
		logger: p.logger,
	}
	p.logger.Debug().Str("sandbox_id", s.id).Str("root", root).Msg("local sandbox created")
	return s, nil
}

// EnsureImage is a no-op: local sandboxes use host interpreters.
func (p *LocalProvider) EnsureImage(ctx context.Context, image string) error {
	return nil
}

type localSandbox struct {
	id     string
	root   string
	cfg    Config
	logger *zerolog.Logger

	mu     sync.Mutex
	killed bool
}

func (s *localSandbox) ID() string {
	return s.id
}

// resolve maps an absolute sandbox path into the sandbox root.
func (s *localSandbox) resolve(p string) string {
	return filepath.Join(s.root, filepath.Clean("/"+p))
}

func (s *localSandbox) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return ErrKilled
	}
	return nil
}

func (s *localSandbox) UploadFile(ctx context.Context, content []byte, path string) error {
	if err := s.alive(); err != nil {
		return err
	}
	if !filepath.IsAbs(path) {
		return fmt.Errorf("upload %s: path must be absolute", path)
	}
	dst := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	return nil
}

func (s *localSandbox) ExecuteCommand(ctx context.Context, command, workDir string) (*Result, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}

	dir := s.resolve(workDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("preparing workdir: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second

	stdout := newCappedBuffer(s.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(s.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{TimeMs: time.Since(start).Milliseconds()}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.Stdout = stdout.String()
		res.Stderr = appendTimeout(stderr.String(), s.cfg.CommandTimeout)
		res.ExitCode = TimeoutExitCode
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running command: %w", err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res, nil
}

func (s *localSandbox) Kill(ctx context.Context) error {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return nil
	}
	s.killed = true
	s.mu.Unlock()

	if err := os.RemoveAll(s.root); err != nil {
		return fmt.Errorf("removing sandbox root: %w", err)
	}
	s.logger.Debug().Str("sandbox_id", s.id).Msg("local sandbox killed")
	return nil
}
