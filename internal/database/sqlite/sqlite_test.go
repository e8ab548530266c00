package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/itstheanurag/gradebox/internal/problems"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleProblem() *problems.Problem {
	return &problems.Problem{
		ProblemText:       "Return the sum of two numbers.",
		FunctionSignature: "function runSolution(a: number, b: number): number",
		Solution:          "function runSolution(a, b) { return a + b }",
		TestCases: []problems.TestCase{
			{
				Description:  "small numbers",
				IsSampleCase: true,
				Input:        []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)},
				Expected:     json.RawMessage(`3`),
			},
			{
				ID:          "edge-negative",
				Description: "negatives",
				IsEdgeCase:  true,
				Input:       []json.RawMessage{json.RawMessage(`-1`), json.RawMessage(`{"x": [1, 2]}`)},
				Expected:    json.RawMessage(`{"ok":true}`),
			},
			{
				Description: "not generated yet",
			},
		},
	}
}

func TestCreateAndGetProblem(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := sampleProblem()
	if err := s.CreateProblem(ctx, p); err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	if p.ID == "" || p.TestCases[0].ID == "" {
		t.Fatal("ids not assigned")
	}
	if p.TestCases[1].ID != "edge-negative" {
		t.Errorf("explicit id replaced: %q", p.TestCases[1].ID)
	}

	got, err := s.GetProblem(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProblem: %v", err)
	}
	if got.ProblemText != p.ProblemText || got.Solution != p.Solution || got.FunctionSignature != p.FunctionSignature {
		t.Errorf("problem = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}
	if len(got.TestCases) != 3 {
		t.Fatalf("got %d test cases", len(got.TestCases))
	}

	first := got.TestCases[0]
	if first.ID != p.TestCases[0].ID || !first.IsSampleCase || first.IsEdgeCase {
		t.Errorf("first case = %+v", first)
	}
	if len(first.Input) != 2 || string(first.Input[1]) != "2" || string(first.Expected) != "3" {
		t.Errorf("first case values = %s / %s", first.Input, first.Expected)
	}

	second := got.TestCases[1]
	if second.ID != "edge-negative" || !second.IsEdgeCase || second.IsSampleCase {
		t.Errorf("second case = %+v", second)
	}
	if string(second.Input[1]) != `{"x":[1,2]}` {
		t.Errorf("object argument = %s", second.Input[1])
	}

	third := got.TestCases[2]
	if third.HasInput() || third.HasExpected() {
		t.Errorf("ungenerated case came back with values: %+v", third)
	}
}

func TestGetProblemNotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetProblem(context.Background(), "nope")
	if !errors.Is(err, problems.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmissions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := sampleProblem()
	if err := s.CreateProblem(ctx, p); err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}

	sub := &problems.Submission{
		ID:        "sub-1",
		ProblemID: p.ID,
		Language:  "python",
		Passed:    1,
		Total:     2,
		Results:   json.RawMessage(`[{"status":"pass"},{"status":"fail"}]`),
	}
	if err := s.SaveSubmission(ctx, sub); err != nil {
		t.Fatalf("SaveSubmission: %v", err)
	}

	got, err := s.GetSubmission(ctx, "sub-1")
	if err != nil {
		t.Fatalf("GetSubmission: %v", err)
	}
	if got.ProblemID != p.ID || got.Passed != 1 || got.Total != 2 || got.Language != "python" {
		t.Errorf("submission = %+v", got)
	}
	if string(got.Results) != string(sub.Results) {
		t.Errorf("results = %s", got.Results)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should not be zero")
	}

	if _, err := s.GetSubmission(ctx, "missing"); !errors.Is(err, problems.ErrNotFound) {
		t.Errorf("missing submission err = %v", err)
	}
}

func TestSubmissionRequiresProblem(t *testing.T) {
	s := testStore(t)
	err := s.SaveSubmission(context.Background(), &problems.Submission{
		ID: "orphan", ProblemID: "ghost", Language: "python", Results: json.RawMessage(`[]`),
	})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gradebox.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	p := sampleProblem()
	if err := s.CreateProblem(ctx, p); err != nil {
		t.Fatalf("CreateProblem: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetProblem(ctx, p.ID); err != nil {
		t.Errorf("GetProblem after reopen: %v", err)
	}
}
