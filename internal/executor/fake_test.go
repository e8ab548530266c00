package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
)

type upload struct {
	path    string
	content string
}

// fakeSandbox records uploads and answers commands from exec, which receives
// the current contents of input.json.
type fakeSandbox struct {
	mu       sync.Mutex
	uploads  []upload
	files    map[string]string
	commands []string
	workDirs []string
	kills    int
	killErr  error // ctx error observed by Kill

	exec      func(ctx context.Context, input string) (*sandbox.Result, error)
	uploadErr func(path string, content string) error
}

func newFakeSandbox(exec func(ctx context.Context, input string) (*sandbox.Result, error)) *fakeSandbox {
	return &fakeSandbox{files: map[string]string{}, exec: exec}
}

func (s *fakeSandbox) ID() string { return "fake-sandbox" }

func (s *fakeSandbox) UploadFile(ctx context.Context, content []byte, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		if err := s.uploadErr(path, string(content)); err != nil {
			return err
		}
	}
	s.uploads = append(s.uploads, upload{path: path, content: string(content)})
	s.files[path] = string(content)
	return nil
}

func (s *fakeSandbox) ExecuteCommand(ctx context.Context, command, workDir string) (*sandbox.Result, error) {
	s.mu.Lock()
	s.commands = append(s.commands, command)
	s.workDirs = append(s.workDirs, workDir)
	input := s.files[workDir+"/input.json"]
	s.mu.Unlock()
	return s.exec(ctx, input)
}

func (s *fakeSandbox) Kill(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kills++
	s.killErr = ctx.Err()
	return nil
}

func (s *fakeSandbox) uploadsTo(path string) int {
	n := 0
	for _, u := range s.uploads {
		if u.path == path {
			n++
		}
	}
	return n
}

type fakeProvider struct {
	sb        *fakeSandbox
	createErr error

	created  int
	language string
	cfg      sandbox.Config
	images   []string
}

func (p *fakeProvider) Create(ctx context.Context, language string, cfg sandbox.Config) (sandbox.Sandbox, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.created++
	p.language = language
	p.cfg = cfg
	return p.sb, nil
}

func (p *fakeProvider) EnsureImage(ctx context.Context, image string) error {
	p.images = append(p.images, image)
	return nil
}

type fakeReader struct {
	problems map[string]*problems.Problem
}

func (r *fakeReader) GetProblem(ctx context.Context, id string) (*problems.Problem, error) {
	p, ok := r.problems[id]
	if !ok {
		return nil, problems.ErrNotFound
	}
	return p, nil
}

// prints answers every command with a successful run printing out.
func prints(out string) func(context.Context, string) (*sandbox.Result, error) {
	return func(context.Context, string) (*sandbox.Result, error) {
		return &sandbox.Result{Stdout: out}, nil
	}
}

// byInput answers commands from a table keyed by input.json contents.
func byInput(table map[string]*sandbox.Result) func(context.Context, string) (*sandbox.Result, error) {
	return func(_ context.Context, input string) (*sandbox.Result, error) {
		res, ok := table[input]
		if !ok {
			return nil, errors.New("unexpected input " + input)
		}
		return res, nil
	}
}

func testCase(id string, expected string, args ...string) problems.TestCase {
	tc := problems.TestCase{ID: id, Input: []json.RawMessage{}}
	for _, a := range args {
		tc.Input = append(tc.Input, json.RawMessage(a))
	}
	if expected != "" {
		tc.Expected = json.RawMessage(expected)
	}
	return tc
}
