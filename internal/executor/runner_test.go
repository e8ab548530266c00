package executor

import (
	"context"
	"os/exec"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
	"github.com/rs/zerolog"
)

// These tests run the embedded runner templates with real interpreters through
// the local provider.

const pythonSolution = `def run_solution(n):
    if n == 3:
        raise ValueError("bad input 3")
    if n == 4:
        print("debug")
        return 5
    if n == 5:
        return {"b": 2, "a": 1}
    if n == 6:
        return None
    return n + 1
`

// runSolution is left unexported so the export fix-up has to apply.
const javascriptSolution = `function runSolution(n) {
  if (n === 3) throw new Error("bad input 3");
  if (n === 4) { console.log("debug"); return 5; }
  if (n === 5) return { b: 2, a: 1 };
  if (n === 6) return undefined;
  if (n === 7) return Promise.resolve(8);
  return n + 1;
}
`

func requireInterpreter(t *testing.T, lang languages.Language) {
	t.Helper()
	bin := sandbox.DefaultInterpreters[languages.ConfigFor(lang).SandboxLanguage]
	if _, err := exec.LookPath(bin); err != nil {
		t.Skipf("%s not installed", bin)
	}
}

func localExecutor() *Executor {
	logger := zerolog.Nop()
	return NewExecutor(sandbox.NewLocalProvider(&logger), nil, Options{
		Sandbox: sandbox.Config{CommandTimeout: 10 * time.Second},
	}, &logger)
}

func TestRunnerTemplates(t *testing.T) {
	tests := []struct {
		lang languages.Language
		code string
	}{
		{languages.Python, pythonSolution},
		{languages.JavaScript, javascriptSolution},
	}

	for _, tc := range tests {
		t.Run(tc.lang.String(), func(t *testing.T) {
			requireInterpreter(t, tc.lang)

			results, err := localExecutor().Run(context.Background(), RunRequest{
				TestCases: []problems.TestCase{
					testCase("plus-one", `42`, `41`),
					testCase("wrong", `42`, `40`),
					testCase("throws", `0`, `3`),
					testCase("debug-print", `5`, `4`),
					testCase("key-order", `{"a": 1, "b": 2}`, `5`),
					testCase("no-value", `0`, `6`),
				},
				SolutionCode: tc.code,
				Language:     tc.lang,
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(results) != 6 {
				t.Fatalf("got %d results", len(results))
			}

			if r := results[0]; r.Status != StatusPass || string(r.Actual) != `42` {
				t.Errorf("plus-one = %s %s %q", r.Status, r.Actual, r.Error)
			}
			if r := results[1]; r.Status != StatusFail || string(r.Actual) != `41` {
				t.Errorf("wrong = %s %s %q", r.Status, r.Actual, r.Error)
			}
			if r := results[2]; r.Status != StatusError || !strings.Contains(r.Error, "bad input 3") || r.Actual != nil {
				t.Errorf("throws = %s %s %q", r.Status, r.Actual, r.Error)
			}
			if r := results[3]; r.Status != StatusError ||
				!strings.HasPrefix(r.Error, "Failed to parse output as JSON: ") ||
				!strings.Contains(r.Error, "debug") {
				t.Errorf("debug-print = %s %s %q", r.Status, r.Actual, r.Error)
			}
			if r := results[4]; r.Status != StatusPass {
				t.Errorf("key-order = %s %s %q", r.Status, r.Actual, r.Error)
			}
			if r := results[5]; r.Status != StatusFail || string(r.Actual) != `null` {
				t.Errorf("no-value = %s %s %q", r.Status, r.Actual, r.Error)
			}
		})
	}
}

func TestJavaScriptRunnerAwaitsPromises(t *testing.T) {
	requireInterpreter(t, languages.JavaScript)

	results, err := localExecutor().Run(context.Background(), RunRequest{
		TestCases:    []problems.TestCase{testCase("async", `8`, `7`)},
		SolutionCode: javascriptSolution,
		Language:     languages.JavaScript,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r := results[0]; r.Status != StatusPass {
		t.Errorf("async = %s %s %q", r.Status, r.Actual, r.Error)
	}
}

func TestRunnerTemplatesRejectBadInput(t *testing.T) {
	langs := []struct {
		lang languages.Language
		code string
	}{
		{languages.Python, pythonSolution},
		{languages.JavaScript, javascriptSolution},
	}
	inputs := []struct {
		name    string
		content string
		stderr  string
	}{
		{"object", `{"n": 1}`, "input must be a JSON array"},
		{"invalid json", `not json`, ""},
	}

	for _, l := range langs {
		t.Run(l.lang.String(), func(t *testing.T) {
			requireInterpreter(t, l.lang)

			cfg := languages.ConfigFor(l.lang)
			logger := zerolog.Nop()
			ctx := context.Background()
			sb, err := sandbox.NewLocalProvider(&logger).Create(ctx, cfg.SandboxLanguage, sandbox.Config{CommandTimeout: 10 * time.Second})
			if err != nil {
				t.Fatalf("Create: %v", err)
			}
			defer sb.Kill(ctx)

			upload := func(name, content string) {
				t.Helper()
				if err := sb.UploadFile(ctx, []byte(content), path.Join(DefaultWorkDir, name)); err != nil {
					t.Fatalf("upload %s: %v", name, err)
				}
			}
			upload(cfg.SourceFile(), languages.PrepareSolution(l.lang, l.code))
			upload(cfg.RunnerFile(), languages.RunnerTemplate(l.lang))

			for _, in := range inputs {
				upload(InputFile, in.content)
				res, err := sb.ExecuteCommand(ctx, cfg.Command(cfg.RunnerFile(), InputFile), DefaultWorkDir)
				if err != nil {
					t.Fatalf("%s: ExecuteCommand: %v", in.name, err)
				}
				if res.ExitCode == 0 {
					t.Errorf("%s: exit code 0", in.name)
				}
				if strings.TrimSpace(res.Stderr) == "" || !strings.Contains(res.Stderr, in.stderr) {
					t.Errorf("%s: stderr = %q", in.name, res.Stderr)
				}
				if strings.TrimSpace(res.Stdout) != "" {
					t.Errorf("%s: stdout = %q", in.name, res.Stdout)
				}
			}
		})
	}
}
