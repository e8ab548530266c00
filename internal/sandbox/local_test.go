package sandbox

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testProvider() *LocalProvider {
	logger := zerolog.Nop()
	p := NewLocalProvider(&logger)
	p.Interpreters = map[string]string{"shell": "sh"}
	return p
}

func newLocal(t *testing.T, cfg Config) *localSandbox {
	t.Helper()
	sb, err := testProvider().Create(context.Background(), "shell", cfg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { sb.Kill(context.Background()) })
	return sb.(*localSandbox)
}

func TestLocalCreateUnknownRuntime(t *testing.T) {
	_, err := testProvider().Create(context.Background(), "cobol", Config{})
	if !errors.Is(err, ErrProvision) {
		t.Fatalf("err = %v, want ErrProvision", err)
	}
}

func TestLocalCreateMissingInterpreter(t *testing.T) {
	p := testProvider()
	p.Interpreters["ghost"] = "definitely-not-a-real-binary-xyz"
	_, err := p.Create(context.Background(), "ghost", Config{})
	if !errors.Is(err, ErrProvision) {
		t.Fatalf("err = %v, want ErrProvision", err)
	}
}

func TestLocalUploadAndExecute(t *testing.T) {
	sb := newLocal(t, Config{})
	ctx := context.Background()

	if err := sb.UploadFile(ctx, []byte(`[1,2]`), "/home/sandbox/input.json"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	res, err := sb.ExecuteCommand(ctx, "cat input.json", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if res.ExitCode != 0 || res.Stdout != "[1,2]" {
		t.Errorf("result = %+v", res)
	}

	// later uploads overwrite
	if err := sb.UploadFile(ctx, []byte(`[3]`), "/home/sandbox/input.json"); err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	res, err = sb.ExecuteCommand(ctx, "cat input.json", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if res.Stdout != "[3]" {
		t.Errorf("stdout = %q, want [3]", res.Stdout)
	}
}

func TestLocalUploadRejectsRelativePath(t *testing.T) {
	sb := newLocal(t, Config{})
	if err := sb.UploadFile(context.Background(), []byte("x"), "relative/file"); err == nil {
		t.Fatal("expected error for relative path")
	}
}

func TestLocalPathsStayInsideRoot(t *testing.T) {
	sb := newLocal(t, Config{})
	got := sb.resolve("/../../etc/passwd")
	if !strings.HasPrefix(got, sb.root) {
		t.Errorf("resolve escaped root: %s", got)
	}
}

func TestLocalNonZeroExitIsData(t *testing.T) {
	sb := newLocal(t, Config{})
	res, err := sb.ExecuteCommand(context.Background(), "echo boom >&2; exit 3", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand returned error for failing program: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(res.Stderr) != "boom" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestLocalTimeout(t *testing.T) {
	sb := newLocal(t, Config{CommandTimeout: 200 * time.Millisecond})
	res, err := sb.ExecuteCommand(context.Background(), "sleep 5", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if res.ExitCode != TimeoutExitCode {
		t.Errorf("exit code = %d, want %d", res.ExitCode, TimeoutExitCode)
	}
	if !strings.Contains(res.Stderr, timeLimitMessage) {
		t.Errorf("stderr = %q", res.Stderr)
	}

	// the sandbox is still usable after a timeout
	res, err = sb.ExecuteCommand(context.Background(), "echo ok", "/home/sandbox")
	if err != nil || strings.TrimSpace(res.Stdout) != "ok" {
		t.Errorf("follow-up command: res=%+v err=%v", res, err)
	}
}

func TestLocalExit124IsNotTimeout(t *testing.T) {
	sb := newLocal(t, Config{CommandTimeout: 5 * time.Second})
	res, err := sb.ExecuteCommand(context.Background(), "echo boom >&2; exit 124", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if res.ExitCode != TimeoutExitCode {
		t.Errorf("exit code = %d", res.ExitCode)
	}
	if strings.Contains(res.Stderr, timeLimitMessage) {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestLocalOutputCapped(t *testing.T) {
	sb := newLocal(t, Config{MaxOutputBytes: 16})
	res, err := sb.ExecuteCommand(context.Background(), "printf '%0100d' 0", "/home/sandbox")
	if err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	if !strings.HasSuffix(res.Stdout, "(output truncated)") {
		t.Errorf("stdout not truncated: %q", res.Stdout)
	}
	if !strings.HasPrefix(res.Stdout, strings.Repeat("0", 16)) {
		t.Errorf("stdout prefix = %q", res.Stdout)
	}
}

func TestLocalKill(t *testing.T) {
	sb := newLocal(t, Config{})
	ctx := context.Background()

	if err := sb.Kill(ctx); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if _, err := os.Stat(sb.root); !os.IsNotExist(err) {
		t.Errorf("root still exists after kill: %v", err)
	}
	if err := sb.Kill(ctx); err != nil {
		t.Errorf("second Kill: %v", err)
	}
	if err := sb.UploadFile(ctx, []byte("x"), "/a"); !errors.Is(err, ErrKilled) {
		t.Errorf("UploadFile after kill err = %v", err)
	}
	if _, err := sb.ExecuteCommand(ctx, "true", "/"); !errors.Is(err, ErrKilled) {
		t.Errorf("ExecuteCommand after kill err = %v", err)
	}
}
