package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	"github.com/itstheanurag/gradebox/internal/metrics"
	"github.com/rs/zerolog"
)

const sandboxHome = "/home/sandbox"

type DockerProvider struct {
	cli    *client.Client
	logger *zerolog.Logger
}

func NewDockerProvider(logger *zerolog.Logger) (*DockerProvider, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &DockerProvider{cli: cli, logger: logger}, nil
}

// Create starts a long-lived container that commands are exec'd into. The
// container idles on sleep until Kill removes it.
func (p *DockerProvider) Create(ctx context.Context, language string, cfg Config) (Sandbox, error) {
	cfg = withDefaults(cfg)
	if cfg.Image == "" {
		return nil, fmt.Errorf("%w: no image for language %q", ErrProvision, language)
	}

	start := time.Now()
	pidsLimit := cfg.PidsLimit
	name := "gradebox-" + uuid.NewString()

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:           cfg.Image,
		Cmd:             []string{"sleep", "infinity"},
		Tty:             false,
		NetworkDisabled: true,
		WorkingDir:      sandboxHome,
		User:            "nobody",
		Labels: map[string]string{
			"gradebox.language": language,
		},
	}, &container.HostConfig{
		Resources: container.Resources{
			Memory:     int64(cfg.MemoryLimitKb * 1024),
			MemorySwap: int64(cfg.MemoryLimitKb * 1024), // no swap
			CPUQuota:   100000,                          // 1 CPU
			PidsLimit:  &pidsLimit,
		},
		NetworkMode: "none",
		// ReadonlyRootfs stays off: solution files live on the tmpfs below.
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Tmpfs: map[string]string{
			sandboxHome: "rw,exec,nosuid,size=64m,mode=1777",
			"/tmp":      "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", ErrProvision, err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = p.cli.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("%w: start container: %v", ErrProvision, err)
	}

	metrics.ContainerCreationTime.Observe(float64(time.Since(start).Milliseconds()))
	p.logger.Debug().Str("sandbox_id", resp.ID).Str("language", language).Msg("sandbox created")

	return &dockerSandbox{
		cli:    p.cli,
		id:     resp.ID,
		cfg:    cfg,
		logger: p.logger,
	}, nil
}

func (p *DockerProvider) EnsureImage(ctx context.Context, img string) error {
	_, _, err := p.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil // Image already exists
	}

	p.logger.Info().Str("image", img).Msg("pulling docker image")
	reader, err := p.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()

	if err := drainPull(reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}

	p.logger.Info().Str("image", img).Msg("successfully pulled docker image")
	return nil
}

type dockerSandbox struct {
	cli    *client.Client
	id     string
	cfg    Config
	logger *zerolog.Logger

	mu     sync.Mutex
	killed bool
}

func (s *dockerSandbox) ID() string {
	return s.id
}

func (s *dockerSandbox) alive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.killed {
		return ErrKilled
	}
	return nil
}

// UploadFile streams content into the container through an exec'd cat.
// CopyToContainer cannot write into tmpfs mounts.
func (s *dockerSandbox) UploadFile(ctx context.Context, content []byte, filePath string) error {
	if err := s.alive(); err != nil {
		return err
	}
	if !path.IsAbs(filePath) {
		return fmt.Errorf("upload %s: path must be absolute", filePath)
	}

	script := fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(path.Dir(filePath)), shellQuote(filePath))
	execResp, err := s.cli.ContainerExecCreate(ctx, s.id, container.ExecOptions{
		Cmd:          []string{"sh", "-c", script},
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("upload %s: create exec: %w", filePath, err)
	}

	attachResp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return fmt.Errorf("upload %s: attach exec: %w", filePath, err)
	}
	defer attachResp.Close()

	if _, err := attachResp.Conn.Write(content); err != nil {
		return fmt.Errorf("upload %s: write: %w", filePath, err)
	}
	if err := attachResp.CloseWrite(); err != nil {
		return fmt.Errorf("upload %s: close stdin: %w", filePath, err)
	}

	// draining the stream waits for cat to exit
	var stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(io.Discard, &stderr, attachResp.Reader); err != nil {
		return fmt.Errorf("upload %s: read exec output: %w", filePath, err)
	}

	inspect, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return fmt.Errorf("upload %s: inspect exec: %w", filePath, err)
	}
	if inspect.ExitCode != 0 {
		return fmt.Errorf("upload %s: exit code %d: %s", filePath, inspect.ExitCode, stderr.String())
	}

	s.logger.Debug().Str("sandbox_id", s.id).Str("path", filePath).Int("bytes", len(content)).Msg("file uploaded")
	return nil
}

// ExecuteCommand runs command under timeout(1) so a hung program is killed
// inside the container before the next command is issued.
func (s *dockerSandbox) ExecuteCommand(ctx context.Context, command, workDir string) (*Result, error) {
	if err := s.alive(); err != nil {
		return nil, err
	}

	// host-side backstop in case the daemon stops answering
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout+5*time.Second)
	defer cancel()

	startTime := time.Now()
	execResp, err := s.cli.ContainerExecCreate(ctx, s.id, container.ExecOptions{
		Cmd:          wrapTimeout(command, s.cfg.CommandTimeout),
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run exec: %w", err)
	}

	startResp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start run exec: %w", err)
	}
	defer startResp.Close()

	stdout := newCappedBuffer(s.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(s.cfg.MaxOutputBytes)
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, startResp.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("failed to read execution logs: %w", err)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("command did not finish: %w", ctx.Err())
	}

	duration := time.Since(startTime)
	inspect, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect run exec: %w", err)
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
		TimeMs:   duration.Milliseconds(),
	}
	if timedOut(res.ExitCode, duration, s.cfg.CommandTimeout) {
		res.Stderr = appendTimeout(res.Stderr, s.cfg.CommandTimeout)
	}
	return res, nil
}

// Kill force-removes the container. Repeated calls and containers that are
// already gone are not errors.
func (s *dockerSandbox) Kill(ctx context.Context) error {
	s.mu.Lock()
	if s.killed {
		s.mu.Unlock()
		return nil
	}
	s.killed = true
	s.mu.Unlock()

	err := s.cli.ContainerRemove(ctx, s.id, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", s.id, err)
	}
	s.logger.Debug().Str("sandbox_id", s.id).Msg("sandbox killed")
	return nil
}

// drainPull consumes an image pull progress stream. The pull only completes
// once the stream is drained, and the daemon reports pull failures inside it.
func drainPull(r io.Reader) error {
	return jsonmessage.DisplayJSONMessagesStream(r, io.Discard, 0, false, nil)
}

func wrapTimeout(command string, limit time.Duration) []string {
	secs := strconv.FormatFloat(limit.Seconds(), 'f', -1, 64)
	return []string{"timeout", "-k", "1", secs, "sh", "-c", command}
}
