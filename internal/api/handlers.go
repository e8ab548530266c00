package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/itstheanurag/gradebox/internal/executor"
	"github.com/itstheanurag/gradebox/internal/languages"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/itstheanurag/gradebox/internal/sandbox"
	"github.com/rs/zerolog"
)

type RunSolutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type RunSolutionResponse struct {
	SubmissionID string                `json:"submissionId,omitempty"`
	Passed       int                   `json:"passed"`
	Total        int                   `json:"total"`
	Results      []executor.TestResult `json:"results"`
}

type RunRequest struct {
	TestCases []problems.TestCase `json:"testCases"`
	Code      string              `json:"code"`
	Language  string              `json:"language"`
}

type SolveRequest struct {
	ProblemPackage *problems.Package `json:"problemPackage"`
	SolutionCode   string            `json:"solutionCode"`
	Language       string            `json:"language"`
	ShowHidden     bool              `json:"showHidden"`
}

type Handler struct {
	store  problems.Store
	run    executor.RunFunc
	logger *zerolog.Logger
}

// NewHandler wires the HTTP handlers. run is normally the queue manager, so
// requests are graded by the worker pool.
func NewHandler(store problems.Store, run executor.RunFunc, logger *zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		run:    run,
		logger: logger,
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, code, msg)
}

// parseLanguage accepts an empty name as def.
func parseLanguage(name string, def languages.Language) (languages.Language, error) {
	if strings.TrimSpace(name) == "" {
		return def, nil
	}
	return languages.Parse(name)
}

func (h *Handler) CreateProblem(w http.ResponseWriter, r *http.Request) {
	var p problems.Problem
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if strings.TrimSpace(p.ProblemText) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "problemText is required")
		return
	}

	if err := h.store.CreateProblem(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, &p)
}

func (h *Handler) GetProblem(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProblem(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p.Solution = ""
	writeData(w, http.StatusOK, p)
}

// RunSolution grades code against every test case of a stored problem and
// records the outcome as a submission.
func (h *Handler) RunSolution(w http.ResponseWriter, r *http.Request) {
	problemID := chi.URLParam(r, "problemID")

	var req RunSolutionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "code is required")
		return
	}
	lang, err := parseLanguage(req.Language, languages.TypeScript)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results, err := executor.RunProblem(r.Context(), h.store, h.run, problemID, req.Code, lang, sandbox.Config{})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := RunSolutionResponse{
		Passed:  executor.Passed(results),
		Total:   len(results),
		Results: results,
	}

	encoded, err := json.Marshal(results)
	if err == nil {
		sub := &problems.Submission{
			ID:        uuid.NewString(),
			ProblemID: problemID,
			Language:  lang.String(),
			Passed:    resp.Passed,
			Total:     resp.Total,
			Results:   encoded,
		}
		err = h.store.SaveSubmission(r.Context(), sub)
		if err == nil {
			resp.SubmissionID = sub.ID
		}
	}
	if err != nil {
		// the grading itself succeeded, so the caller still gets results
		h.logger.Warn().Err(err).Str("problem_id", problemID).Msg("failed to save submission")
	}

	writeData(w, http.StatusOK, resp)
}

// Run grades code against test cases supplied in the request.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "code is required")
		return
	}
	if len(req.TestCases) == 0 {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "testCases is required")
		return
	}
	lang, err := parseLanguage(req.Language, languages.TypeScript)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	results, err := h.run(r.Context(), executor.RunRequest{
		TestCases:    req.TestCases,
		SolutionCode: req.Code,
		Language:     lang,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, results)
}

func (h *Handler) Solve(w http.ResponseWriter, r *http.Request) {
	var req SolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.ProblemPackage == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "problemPackage is required")
		return
	}
	if req.SolutionCode == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "solutionCode is required")
		return
	}
	lang, err := parseLanguage(req.Language, languages.JavaScript)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out, err := executor.Solve(r.Context(), h.run, executor.SolveRequest{
		Package:      req.ProblemPackage,
		SolutionCode: req.SolutionCode,
		Language:     lang,
		ShowHidden:   req.ShowHidden,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, out)
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sub)
}

func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	type language struct {
		Name      string `json:"name"`
		Extension string `json:"extension"`
		Runtime   string `json:"runtime"`
	}
	var out []language
	for _, l := range languages.All() {
		cfg := languages.ConfigFor(l)
		out = append(out, language{Name: l.String(), Extension: cfg.Extension, Runtime: cfg.RunCommand})
	}
	writeData(w, http.StatusOK, out)
}
