package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/metrics"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
	"github.com/rs/zerolog"
)

const (
	DefaultWorkDir = "/home/sandbox"
	InputFile      = "input.json"

	killTimeout = 10 * time.Second
)

var ErrIncompleteTestCase = errors.New("incomplete test case")

// IncompleteTestCaseError names the first test case that cannot be run
// because its input or expected output has not been generated yet.
type IncompleteTestCaseError struct {
	Index int // 0-based
	ID    string
	Field string // "input" or "expected output"
}

func (e *IncompleteTestCaseError) Error() string {
	hint := "inputs"
	if e.Field != "input" {
		hint = "outputs"
	}
	name := fmt.Sprintf("test case %d", e.Index+1)
	if e.ID != "" {
		name += fmt.Sprintf(" (id %s)", e.ID)
	}
	return fmt.Sprintf("%s is missing %s, generate test case %s first", name, e.Field, hint)
}

func (e *IncompleteTestCaseError) Unwrap() error {
	return ErrIncompleteTestCase
}

// CheckTestCases returns an *IncompleteTestCaseError for the first case that
// lacks input or expected output.
func CheckTestCases(cases []problems.TestCase) error {
	for i, tc := range cases {
		if !tc.HasInput() {
			return &IncompleteTestCaseError{Index: i, ID: tc.ID, Field: "input"}
		}
		if !tc.HasExpected() {
			return &IncompleteTestCaseError{Index: i, ID: tc.ID, Field: "expected output"}
		}
	}
	return nil
}

type Options struct {
	WorkDir string
	// Sandbox holds defaults; non-zero fields of a request override them.
	Sandbox sandbox.Config
	Images  map[languages.Language]string
}

type RunRequest struct {
	TestCases    []problems.TestCase
	SolutionCode string
	Language     languages.Language
	Sandbox      sandbox.Config
}

type Executor struct {
	provider sandbox.Provider
	problems problems.Reader
	opts     Options
	logger   *zerolog.Logger
}

func NewExecutor(provider sandbox.Provider, reader problems.Reader, opts Options, logger *zerolog.Logger) *Executor {
	if opts.WorkDir == "" {
		opts.WorkDir = DefaultWorkDir
	}
	return &Executor{
		provider: provider,
		problems: reader,
		opts:     opts,
		logger:   logger,
	}
}

// Image returns the sandbox image used for l.
func (e *Executor) Image(l languages.Language) string {
	if img := e.opts.Images[l]; img != "" {
		return img
	}
	return languages.ConfigFor(l).Image
}

// EnsureImages asks the provider to make every language image available.
func (e *Executor) EnsureImages(ctx context.Context) error {
	for _, l := range languages.All() {
		if err := e.provider.EnsureImage(ctx, e.Image(l)); err != nil {
			return fmt.Errorf("ensure image for %s: %w", l, err)
		}
	}
	return nil
}

// RunProblem grades code against every test case of a stored problem.
func (e *Executor) RunProblem(ctx context.Context, problemID, code string, lang languages.Language, cfg sandbox.Config) ([]TestResult, error) {
	if e.problems == nil {
		return nil, errors.New("executor has no problem store")
	}
	return RunProblem(ctx, e.problems, e.Run, problemID, code, lang, cfg)
}

// RunProblem fetches a problem from reader and grades code against its test
// cases with run.
func RunProblem(ctx context.Context, reader problems.Reader, run RunFunc, problemID, code string, lang languages.Language, cfg sandbox.Config) ([]TestResult, error) {
	p, err := reader.GetProblem(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if len(p.TestCases) == 0 {
		return nil, problems.ErrNoTestCases
	}
	return run(ctx, RunRequest{
		TestCases:    p.TestCases,
		SolutionCode: code,
		Language:     lang,
		Sandbox:      cfg,
	})
}

// Run grades a solution against the given test cases in one sandbox and
// returns one result per case, in order. Only an unsupported language, an
// incomplete test case or a provisioning failure produce an error; every
// other failure is reported as an error result for the affected case.
func (e *Executor) Run(ctx context.Context, req RunRequest) ([]TestResult, error) {
	lang := req.Language
	if !lang.Valid() {
		metrics.RunsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, fmt.Errorf("%w: %q", languages.ErrLanguageNotFound, lang)
	}
	if err := CheckTestCases(req.TestCases); err != nil {
		metrics.RunsTotal.WithLabelValues(lang.String(), "rejected").Inc()
		return nil, err
	}
	if len(req.TestCases) == 0 {
		return []TestResult{}, nil
	}

	cfg := languages.ConfigFor(lang)
	runID := uuid.NewString()
	log := e.logger.With().Str("run_id", runID).Str("language", lang.String()).Logger()

	start := time.Now()
	sb, err := e.provider.Create(ctx, cfg.SandboxLanguage, e.sandboxConfig(lang, req.Sandbox))
	if err != nil {
		metrics.RunsTotal.WithLabelValues(lang.String(), "provision_error").Inc()
		log.Error().Err(err).Msg("sandbox provisioning failed")
		if !errors.Is(err, sandbox.ErrProvision) {
			err = fmt.Errorf("%w: %v", sandbox.ErrProvision, err)
		}
		return nil, err
	}
	defer e.release(ctx, sb, &log)
	log = log.With().Str("sandbox_id", sb.ID()).Logger()

	results := e.runCases(ctx, sb, cfg, lang, req, &log, start)

	passed := Passed(results)
	for _, r := range results {
		metrics.VerdictsTotal.WithLabelValues(lang.String(), string(r.Status)).Inc()
	}
	metrics.RunsTotal.WithLabelValues(lang.String(), "completed").Inc()
	metrics.RunDuration.WithLabelValues(lang.String(), "total").Observe(float64(time.Since(start).Milliseconds()))

	log.Info().
		Int("passed", passed).
		Int("total", len(results)).
		Dur("duration", time.Since(start)).
		Msg("run finished")
	return results, nil
}

func (e *Executor) runCases(ctx context.Context, sb sandbox.Sandbox, cfg languages.RuntimeConfig, lang languages.Language, req RunRequest, log *zerolog.Logger, start time.Time) []TestResult {
	workDir := e.opts.WorkDir
	results := make([]TestResult, len(req.TestCases))

	if err := e.setup(ctx, sb, cfg, lang, req.SolutionCode); err != nil {
		log.Error().Err(err).Msg("sandbox setup failed")
		for i, tc := range req.TestCases {
			results[i] = errorResult(tc, err.Error())
		}
		return results
	}
	metrics.RunDuration.WithLabelValues(lang.String(), "setup").Observe(float64(time.Since(start).Milliseconds()))

	testsStart := time.Now()
	command := cfg.Command(cfg.RunnerFile(), InputFile)
	inputPath := path.Join(workDir, InputFile)

	for i, tc := range req.TestCases {
		if err := ctx.Err(); err != nil {
			results[i] = errorResult(tc, fmt.Sprintf("run cancelled: %v", err))
			continue
		}
		results[i] = e.runCase(ctx, sb, tc, command, inputPath)
		log.Debug().
			Str("test_case", tc.Label(i)).
			Str("status", string(results[i].Status)).
			Int64("time_ms", results[i].TimeMs).
			Msg("test case classified")
	}
	metrics.RunDuration.WithLabelValues(lang.String(), "tests").Observe(float64(time.Since(testsStart).Milliseconds()))
	return results
}

// setup uploads the solution and runner once per run.
func (e *Executor) setup(ctx context.Context, sb sandbox.Sandbox, cfg languages.RuntimeConfig, lang languages.Language, code string) error {
	solution := languages.PrepareSolution(lang, code)
	if err := sb.UploadFile(ctx, []byte(solution), path.Join(e.opts.WorkDir, cfg.SourceFile())); err != nil {
		return fmt.Errorf("uploading solution: %w", err)
	}
	if err := sb.UploadFile(ctx, []byte(languages.RunnerTemplate(lang)), path.Join(e.opts.WorkDir, cfg.RunnerFile())); err != nil {
		return fmt.Errorf("uploading runner: %w", err)
	}
	return nil
}

func (e *Executor) runCase(ctx context.Context, sb sandbox.Sandbox, tc problems.TestCase, command, inputPath string) (res TestResult) {
	defer func() {
		if r := recover(); r != nil {
			res = errorResult(tc, fmt.Sprintf("internal error: %v", r))
		}
	}()

	input, err := json.Marshal(tc.Input)
	if err != nil {
		return errorResult(tc, fmt.Sprintf("encoding input: %v", err))
	}
	if err := sb.UploadFile(ctx, input, inputPath); err != nil {
		return errorResult(tc, fmt.Sprintf("uploading input: %v", err))
	}
	out, err := sb.ExecuteCommand(ctx, command, e.opts.WorkDir)
	if err != nil {
		return errorResult(tc, fmt.Sprintf("executing runner: %v", err))
	}
	return Classify(tc, out)
}

// release kills the sandbox even when ctx is already cancelled.
func (e *Executor) release(ctx context.Context, sb sandbox.Sandbox, log *zerolog.Logger) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), killTimeout)
	defer cancel()
	if err := sb.Kill(killCtx); err != nil {
		log.Warn().Err(err).Msg("failed to kill sandbox")
	}
}

func (e *Executor) sandboxConfig(lang languages.Language, override sandbox.Config) sandbox.Config {
	cfg := e.opts.Sandbox
	cfg.Image = e.Image(lang)
	if override.Image != "" {
		cfg.Image = override.Image
	}
	if override.MemoryLimitKb > 0 {
		cfg.MemoryLimitKb = override.MemoryLimitKb
	}
	if override.CommandTimeout > 0 {
		cfg.CommandTimeout = override.CommandTimeout
	}
	if override.PidsLimit > 0 {
		cfg.PidsLimit = override.PidsLimit
	}
	if override.MaxOutputBytes > 0 {
		cfg.MaxOutputBytes = override.MaxOutputBytes
	}
	return cfg
}
