package sqlite

import "database/sql"

const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS problems (
    id                 TEXT PRIMARY KEY,
    problem_text       TEXT NOT NULL DEFAULT '',
    function_signature TEXT NOT NULL DEFAULT '',
    solution           TEXT NOT NULL DEFAULT '',
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS test_cases (
    id             TEXT PRIMARY KEY,
    problem_id     TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    position       INTEGER NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    is_edge_case   INTEGER NOT NULL DEFAULT 0,
    is_sample_case INTEGER NOT NULL DEFAULT 0,
    input          TEXT,
    expected       TEXT
);

CREATE INDEX IF NOT EXISTS idx_test_cases_problem ON test_cases(problem_id, position);

CREATE TABLE IF NOT EXISTS submissions (
    id         TEXT PRIMARY KEY,
    problem_id TEXT NOT NULL REFERENCES problems(id) ON DELETE CASCADE,
    language   TEXT NOT NULL,
    passed     INTEGER NOT NULL,
    total      INTEGER NOT NULL,
    results    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	var current int
	row := db.QueryRow("SELECT version FROM schema_version LIMIT 1")
	if err := row.Scan(&current); err != nil {
		// no schema yet
		current = 0
	}

	if current >= schemaVersion {
		return nil
	}

	if current < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return err
		}
	}

	if _, err := db.Exec(`DELETE FROM schema_version`); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}
