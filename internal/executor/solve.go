package executor

import (
	"context"
	"errors"

	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
)

// RunFunc runs one batch of test cases. Executor.Run and queue.Manager.Run
// both satisfy it.
type RunFunc func(ctx context.Context, req RunRequest) ([]TestResult, error)

type SolveRequest struct {
	Package      *problems.Package
	SolutionCode string
	Language     languages.Language
	ShowHidden   bool
	Sandbox      sandbox.Config
}

type Summary struct {
	SamplePassed int  `json:"samplePassed"`
	SampleTotal  int  `json:"sampleTotal"`
	HiddenPassed *int `json:"hiddenPassed,omitempty"`
	HiddenTotal  *int `json:"hiddenTotal,omitempty"`
	AllPassed    bool `json:"allPassed"`
}

type SolveOutput struct {
	SampleResults []TestResult `json:"sampleResults"`
	HiddenResults []TestResult `json:"hiddenResults,omitempty"`
	Summary       Summary      `json:"summary"`
}

// Solve grades the sample cases of a package and, when they all pass or
// ShowHidden is set, its hidden cases as well. Hidden results are only
// returned with ShowHidden; their counts are reported whenever they ran.
func Solve(ctx context.Context, run RunFunc, req SolveRequest) (*SolveOutput, error) {
	if req.Package == nil {
		return nil, errors.New("no problem package given")
	}
	for _, cases := range [][]problems.TestCase{req.Package.SampleTestCases, req.Package.HiddenTestCases} {
		if err := CheckTestCases(cases); err != nil {
			return nil, err
		}
	}

	sample, err := run(ctx, RunRequest{
		TestCases:    req.Package.SampleTestCases,
		SolutionCode: req.SolutionCode,
		Language:     req.Language,
		Sandbox:      req.Sandbox,
	})
	if err != nil {
		return nil, err
	}

	out := &SolveOutput{SampleResults: sample}
	out.Summary.SamplePassed = Passed(sample)
	out.Summary.SampleTotal = len(sample)
	allPassed := out.Summary.SamplePassed == out.Summary.SampleTotal

	if req.ShowHidden || allPassed {
		hidden, err := run(ctx, RunRequest{
			TestCases:    req.Package.HiddenTestCases,
			SolutionCode: req.SolutionCode,
			Language:     req.Language,
			Sandbox:      req.Sandbox,
		})
		if err != nil {
			return nil, err
		}
		passed, total := Passed(hidden), len(hidden)
		out.Summary.HiddenPassed = &passed
		out.Summary.HiddenTotal = &total
		allPassed = allPassed && passed == total
		if req.ShowHidden {
			out.HiddenResults = hidden
		}
	}

	out.Summary.AllPassed = allPassed
	return out, nil
}
