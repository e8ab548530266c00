package executor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
)

// scriptedRun passes every case whose id is not in failing.
func scriptedRun(failing map[string]bool, calls *int) RunFunc {
	return func(ctx context.Context, req RunRequest) ([]TestResult, error) {
		*calls++
		out := make([]TestResult, len(req.TestCases))
		for i, tc := range req.TestCases {
			out[i] = TestResult{TestCase: tc, Status: StatusPass, Actual: json.RawMessage("1")}
			if failing[tc.ID] {
				out[i].Status = StatusFail
			}
		}
		return out, nil
	}
}

func solvePackage() *problems.Package {
	return &problems.Package{
		SampleTestCases: []problems.TestCase{testCase("s1", "1", "1"), testCase("s2", "1", "2")},
		HiddenTestCases: []problems.TestCase{testCase("h1", "1", "3"), testCase("h2", "1", "4"), testCase("h3", "1", "5")},
	}
}

func TestSolve(t *testing.T) {
	tests := []struct {
		name          string
		failing       map[string]bool
		showHidden    bool
		wantCalls     int
		wantHidden    bool // hidden counts reported
		wantHiddenRes bool // hidden results returned
		wantSample    int
		wantHiddenOK  int
		wantAll       bool
	}{
		{"all pass", nil, false, 2, true, false, 2, 3, true},
		{"all pass shown", nil, true, 2, true, true, 2, 3, true},
		{"sample fails", map[string]bool{"s1": true}, false, 1, false, false, 1, 0, false},
		{"sample fails shown", map[string]bool{"s1": true}, true, 2, true, true, 1, 3, false},
		{"hidden fails", map[string]bool{"h2": true}, false, 2, true, false, 2, 2, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			out, err := Solve(context.Background(), scriptedRun(tc.failing, &calls), SolveRequest{
				Package:    solvePackage(),
				Language:   languages.JavaScript,
				ShowHidden: tc.showHidden,
			})
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}
			if calls != tc.wantCalls {
				t.Errorf("run calls = %d, want %d", calls, tc.wantCalls)
			}
			s := out.Summary
			if s.SampleTotal != 2 || s.SamplePassed != tc.wantSample {
				t.Errorf("sample %d/%d", s.SamplePassed, s.SampleTotal)
			}
			if (s.HiddenTotal != nil) != tc.wantHidden {
				t.Errorf("hidden counts reported = %v", s.HiddenTotal != nil)
			}
			if tc.wantHidden && (*s.HiddenTotal != 3 || *s.HiddenPassed != tc.wantHiddenOK) {
				t.Errorf("hidden %d/%d", *s.HiddenPassed, *s.HiddenTotal)
			}
			if (out.HiddenResults != nil) != tc.wantHiddenRes {
				t.Errorf("hidden results returned = %v", out.HiddenResults != nil)
			}
			if s.AllPassed != tc.wantAll {
				t.Errorf("allPassed = %v", s.AllPassed)
			}
		})
	}
}

func TestSolveRejectsIncompleteHiddenCase(t *testing.T) {
	pkg := solvePackage()
	pkg.HiddenTestCases[1].Expected = nil
	calls := 0
	_, err := Solve(context.Background(), scriptedRun(nil, &calls), SolveRequest{Package: pkg, Language: languages.Python})
	if !errors.Is(err, ErrIncompleteTestCase) {
		t.Fatalf("err = %v", err)
	}
	if calls != 0 {
		t.Errorf("ran %d batches before failing", calls)
	}
}

func TestSolvePropagatesRunError(t *testing.T) {
	run := func(ctx context.Context, req RunRequest) ([]TestResult, error) {
		return nil, errors.New("provisioning failed")
	}
	if _, err := Solve(context.Background(), run, SolveRequest{Package: solvePackage()}); err == nil {
		t.Error("expected error")
	}
	if _, err := Solve(context.Background(), run, SolveRequest{}); err == nil {
		t.Error("expected error for missing package")
	}
}
