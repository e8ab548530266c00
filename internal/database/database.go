package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/itstheanurag/gradebox/internal/config"
	"github.com/itstheanurag/gradebox/internal/problems"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const DatabasePingTimeout = 10

// Database is the Postgres problem store.
type Database struct {
	Pool *pgxpool.Pool
	log  *zerolog.Logger
}

// DSN builds a postgres connection URL from config.
func DSN(conf config.DbConfig) string {
	host := net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
		url.QueryEscape(conf.User),
		url.QueryEscape(conf.Password),
		host,
		conf.Name,
		conf.SSLMode,
	)
}

func New(conf *config.Config, log *zerolog.Logger) (*Database, error) {
	pgxPoolConfig, err := pgxpool.ParseConfig(DSN(conf.Db))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pgxPoolConfig.ConnConfig.RuntimeParams["application_name"] = "gradebox"
	pgxPoolConfig.ConnConfig.Tracer = &queryTracer{log: log, slow: 200 * time.Millisecond}

	pgxPoolConfig.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialer := &net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		return dialer.DialContext(ctx, network, addr)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), pgxPoolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DatabasePingTimeout*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info().Msg("database connection established")

	return &Database{Pool: pool, log: log}, nil
}

func (db *Database) Close() error {
	db.log.Info().Msg("Closing database connection pool")
	db.Pool.Close()
	return nil
}

func (db *Database) CreateProblem(ctx context.Context, p *problems.Problem) error {
	problems.AssignIDs(p)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO problems (id, problem_text, function_signature, solution, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ProblemText, p.FunctionSignature, p.Solution, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting problem: %w", err)
	}

	for i, tc := range p.TestCases {
		input, err := tc.InputJSON()
		if err != nil {
			return fmt.Errorf("encoding input of test case %d: %w", i+1, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO test_cases (id, problem_id, position, description, is_edge_case, is_sample_case, input, expected)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			tc.ID, p.ID, i, tc.Description, tc.IsEdgeCase, tc.IsSampleCase, input, tc.ExpectedJSON(),
		)
		if err != nil {
			return fmt.Errorf("inserting test case %d: %w", i+1, err)
		}
	}

	return tx.Commit(ctx)
}

func (db *Database) GetProblem(ctx context.Context, id string) (*problems.Problem, error) {
	var p problems.Problem
	err := db.Pool.QueryRow(ctx, `
		SELECT id, problem_text, function_signature, solution, created_at, updated_at
		FROM problems WHERE id = $1`, id,
	).Scan(&p.ID, &p.ProblemText, &p.FunctionSignature, &p.Solution, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", problems.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying problem: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, description, is_edge_case, is_sample_case, input, expected
		FROM test_cases WHERE problem_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying test cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tc problems.TestCase
		var input, expected []byte
		if err := rows.Scan(&tc.ID, &tc.Description, &tc.IsEdgeCase, &tc.IsSampleCase, &input, &expected); err != nil {
			return nil, fmt.Errorf("scanning test case: %w", err)
		}
		if tc.Input, err = problems.DecodeInput(input); err != nil {
			return nil, fmt.Errorf("decoding input of test case %s: %w", tc.ID, err)
		}
		tc.Expected = expected
		p.TestCases = append(p.TestCases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading test cases: %w", err)
	}
	return &p, nil
}

func (db *Database) SaveSubmission(ctx context.Context, s *problems.Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO submissions (id, problem_id, language, passed, total, results, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.ProblemID, s.Language, s.Passed, s.Total, []byte(s.Results), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (db *Database) GetSubmission(ctx context.Context, id string) (*problems.Submission, error) {
	var s problems.Submission
	var results []byte
	err := db.Pool.QueryRow(ctx, `
		SELECT id, problem_id, language, passed, total, results, created_at
		FROM submissions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ProblemID, &s.Language, &s.Passed, &s.Total, &results, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: submission %s", problems.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying submission: %w", err)
	}
	s.Results = results
	return &s, nil
}
