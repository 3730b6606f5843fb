package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reverscodes/codes-cli/internal/model"
)

// pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pool
	now  func() time.Time
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertRun     = `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	pgGetRun        = `SELECT ` + runColumns + ` FROM runs WHERE id = $1`
	pgGetCachedPage = `SELECT html FROM page_cache WHERE url = $1 AND expires_at > $2`
	pgSetCachedPage = `INSERT INTO page_cache (url, html, fetched_at, expires_at) VALUES ($1, $2, $3, $4) ON CONFLICT (url) DO UPDATE SET html = EXCLUDED.html, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at`
	pgDeleteExpired = `DELETE FROM page_cache WHERE expires_at <= $1`
)

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":      pgInsertRun,
	"get_run":         pgGetRun,
	"get_cached_page": pgGetCachedPage,
	"set_cached_page": pgSetCachedPage,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	p, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: p, now: time.Now}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	game          TEXT NOT NULL,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL,
	active_count  INTEGER NOT NULL DEFAULT 0,
	expired_count INTEGER NOT NULL DEFAULT 0,
	sources_ok    INTEGER NOT NULL DEFAULT 0,
	sources_total INTEGER NOT NULL DEFAULT 0,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	result        JSONB,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	html       TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_game_created ON runs(game, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run, s.clock())

	resultJSON, err := marshalResult(run.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}

	_, err = s.pool.Exec(ctx, pgInsertRun,
		run.ID, run.Game, string(run.Mode), string(run.Status),
		run.ActiveCount, run.ExpiredCount, run.SourcesOK, run.SourcesTotal,
		run.QualityScore, resultJSON, run.Error, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, pgGetRun, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Game != "" {
		query += fmt.Sprintf(` AND game = $%d`, argIdx)
		args = append(args, filter.Game)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) GetCachedPage(ctx context.Context, url string) (string, bool, error) {
	var html string
	err := s.pool.QueryRow(ctx, pgGetCachedPage, url, s.clock().UTC()).Scan(&html)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "postgres: get cached page")
	}
	return html, true, nil
}

func (s *PostgresStore) SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error {
	now := s.clock().UTC()
	_, err := s.pool.Exec(ctx, pgSetCachedPage, url, html, now, now.Add(ttl))
	return eris.Wrap(err, "postgres: set cached page")
}

func (s *PostgresStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, pgDeleteExpired, s.clock().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired pages")
	}
	return int(tag.RowsAffected()), nil
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var mode, status string
	var resultJSON []byte

	if err := row.Scan(&r.ID, &r.Game, &mode, &status,
		&r.ActiveCount, &r.ExpiredCount, &r.SourcesOK, &r.SourcesTotal,
		&r.QualityScore, &resultJSON, &r.Error, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Mode = model.Mode(mode)
	r.Status = model.RunStatus(status)

	if len(resultJSON) > 0 {
		r.Result = &model.GameResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}
