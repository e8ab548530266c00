package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS problems (
    id                 TEXT PRIMARY KEY,
    problem_text       TEXT NOT NULL DEFAULT '',
    function_signature TEXT NOT NULL DEFAULT '',
    solution           TEXT NOT NULL DEFAULT '',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS test_cases (
    id             TEXT PRIMARY KEY,
    problem_id     TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    is_edge_case   BOOLEAN NOT NULL DEFAULT false,
    is_sample_case BOOLEAN NOT NULL DEFAULT false,
    input          JSONB,
    expected       JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_test_cases_problem ON test_cases(problem_id, position);

CREATE TABLE IF NOT EXISTS submissions (
    id         TEXT PRIMARY KEY,
    problem_id TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    language   TEXT NOT NULL,
    passed     INTEGER NOT NULL,
    total      INTEGER NOT NULL,
    results    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_submissions_problem ON submissions(problem_id, created_at DESC);
`

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
