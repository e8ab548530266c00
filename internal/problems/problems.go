package problems

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("problem not found")
	ErrNoTestCases = errors.New("no test cases found, generate test case descriptions and inputs first")
)

// TestCase is one grading unit. Input holds the positional arguments of the
// solution function; Input and Expected stay nil until they are generated.
type TestCase struct {
	ID           string            `json:"id"`
	Description  string            `json:"description"`
	IsEdgeCase   bool              `json:"isEdgeCase"`
	IsSampleCase bool              `json:"isSampleCase"`
	Input        []json.RawMessage `json:"input"`
	Expected     json.RawMessage   `json:"expected"`
}

var jsonNull = []byte("null")

func (tc TestCase) HasInput() bool {
	return tc.Input != nil
}

func (tc TestCase) HasExpected() bool {
	trimmed := bytes.TrimSpace(tc.Expected)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, jsonNull)
}

// InputJSON encodes Input as a JSON array, or returns nil when absent.
func (tc TestCase) InputJSON() ([]byte, error) {
	if tc.Input == nil {
		return nil, nil
	}
	return json.Marshal(tc.Input)
}

// ExpectedJSON returns Expected, or nil when absent.
func (tc TestCase) ExpectedJSON() []byte {
	if !tc.HasExpected() {
		return nil
	}
	return []byte(tc.Expected)
}

// DecodeInput is the inverse of InputJSON.
func DecodeInput(raw []byte) ([]json.RawMessage, error) {
	if raw == nil {
		return nil, nil
	}
	args := []json.RawMessage{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// Label names the case in diagnostics: its id when it has one, otherwise its
// 1-based position.
func (tc TestCase) Label(index int) string {
	if tc.ID != "" {
		return tc.ID
	}
	return "#" + strconv.Itoa(index+1)
}

type Problem struct {
	ID                string     `json:"id"`
	ProblemText       string     `json:"problemText"`
	FunctionSignature string     `json:"functionSignature"`
	Solution          string     `json:"solution,omitempty"`
	TestCases         []TestCase `json:"testCases"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Submission is a persisted grading run of a stored problem.
type Submission struct {
	ID        string          `json:"id"`
	ProblemID string          `json:"problemId"`
	Language  string          `json:"language"`
	Passed    int             `json:"passed"`
	Total     int             `json:"total"`
	Results   json.RawMessage `json:"results"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Reader is what the grading path needs from storage.
type Reader interface {
	GetProblem(ctx context.Context, id string) (*Problem, error)
}

type Store interface {
	Reader
	CreateProblem(ctx context.Context, p *Problem) error
	SaveSubmission(ctx context.Context, s *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	Close() error
}

// AssignIDs fills in missing problem and test case ids.
func AssignIDs(p *Problem) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.TestCases {
		if p.TestCases[i].ID == "" {
			p.TestCases[i].ID = uuid.NewString()
		}
	}
}
