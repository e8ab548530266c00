package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
)

type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// TestResult is the verdict for one test case. Actual is nil whenever the
// program did not produce a valid JSON value, and encodes as null.
type TestResult struct {
	TestCase problems.TestCase `json:"testCase"`
	Status   Status            `json:"status"`
	Actual   json.RawMessage   `json:"actual"`
	Error    string            `json:"error,omitempty"`
	TimeMs   int64             `json:"timeMs"`
}

func errorResult(tc problems.TestCase, msg string) TestResult {
	return TestResult{TestCase: tc, Status: StatusError, Error: msg}
}

// Classify turns one finished command into a verdict.
func Classify(tc problems.TestCase, res *sandbox.Result) TestResult {
	if res.ExitCode != 0 {
		msg := res.Stderr
		if msg == "" {
			msg = res.Stdout
		}
		if msg == "" {
			msg = "Execution failed"
		}
		r := errorResult(tc, msg)
		r.TimeMs = res.TimeMs
		return r
	}

	stdout := strings.TrimSpace(res.Stdout)
	var actual bytes.Buffer
	if err := json.Compact(&actual, []byte(stdout)); err != nil {
		r := errorResult(tc, "Failed to parse output as JSON: "+stdout)
		r.TimeMs = res.TimeMs
		return r
	}

	r := TestResult{
		TestCase: tc,
		Actual:   json.RawMessage(actual.Bytes()),
		TimeMs:   res.TimeMs,
	}
	equal, err := Equal(r.Actual, tc.Expected)
	switch {
	case err != nil:
		r.Status = StatusError
		r.Error = fmt.Sprintf("comparing against expected value: %v", err)
	case equal:
		r.Status = StatusPass
	default:
		r.Status = StatusFail
	}
	return r
}

// Passed counts the results with status pass.
func Passed(results []TestResult) int {
	n := 0
	for _, r := range results {
		if r.Status == StatusPass {
			n++
		}
	}
	return n
}
