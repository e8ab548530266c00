package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/itstheanurag/gradebox/internal/problems"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements problems.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one connection: an in-memory database is per connection, and writers
	// would otherwise contend for the file lock
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateProblem(ctx context.Context, p *problems.Problem) error {
	problems.AssignIDs(p)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO problems (id, problem_text, function_signature, solution, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProblemText, p.FunctionSignature, p.Solution,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting problem: %w", err)
	}

	for i, tc := range p.TestCases {
		input, err := tc.InputJSON()
		if err != nil {
			return fmt.Errorf("encoding input of test case %d: %w", i+1, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_cases (id, problem_id, position, description, is_edge_case, is_sample_case, input, expected)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tc.ID, p.ID, i, tc.Description, tc.IsEdgeCase, tc.IsSampleCase,
			nullableText(input), nullableText(tc.ExpectedJSON()),
		)
		if err != nil {
			return fmt.Errorf("inserting test case %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetProblem(ctx context.Context, id string) (*problems.Problem, error) {
	var p problems.Problem
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, problem_text, function_signature, solution, created_at, updated_at
		FROM problems WHERE id = ?`, id,
	).Scan(&p.ID, &p.ProblemText, &p.FunctionSignature, &p.Solution, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", problems.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying problem: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, is_edge_case, is_sample_case, input, expected
		FROM test_cases WHERE problem_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying test cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc problems.TestCase
		var input, expected sql.NullString
		if err := rows.Scan(&tc.ID, &tc.Description, &tc.IsEdgeCase, &tc.IsSampleCase, &input, &expected); err != nil {
			return nil, fmt.Errorf("scanning test case: %w", err)
		}
		if input.Valid {
			if tc.Input, err = problems.DecodeInput([]byte(input.String)); err != nil {
				return nil, fmt.Errorf("decoding input of test case %s: %w", tc.ID, err)
			}
		}
		if expected.Valid {
			tc.Expected = []byte(expected.String)
		}
		p.TestCases = append(p.TestCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) SaveSubmission(ctx context.Context, sub *problems.Submission) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, problem_id, language, passed, total, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ProblemID, sub.Language, sub.Passed, sub.Total, string(sub.Results), formatTime(sub.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*problems.Submission, error) {
	var sub problems.Submission
	var results, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, problem_id, language, passed, total, results, created_at
		FROM submissions WHERE id = ?`, id,
	).Scan(&sub.ID, &sub.ProblemID, &sub.Language, &sub.Passed, &sub.Total, &results, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: submission %s", problems.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying submission: %w", err)
	}
	sub.Results = []byte(results)
	sub.CreatedAt = parseTime(createdAt)
	return &sub, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
