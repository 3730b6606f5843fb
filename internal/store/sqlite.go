package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reverscodes/codes-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	game          TEXT NOT NULL,
	mode          TEXT NOT NULL,
	status        TEXT NOT NULL,
	active_count  INTEGER NOT NULL DEFAULT 0,
	expired_count INTEGER NOT NULL DEFAULT 0,
	sources_ok    INTEGER NOT NULL DEFAULT 0,
	sources_total INTEGER NOT NULL DEFAULT 0,
	quality_score REAL NOT NULL DEFAULT 0,
	result        TEXT,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS page_cache (
	url        TEXT PRIMARY KEY,
	html       TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_game ON runs(game);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

const runColumns = `id, game, mode, status, active_count, expired_count, sources_ok, sources_total, quality_score, result, error, created_at`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	prepareRun(run, s.now())

	resultJSON, err := marshalResult(run.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	var result sql.NullString
	if resultJSON != nil {
		result = sql.NullString{String: string(resultJSON), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Game, string(run.Mode), string(run.Status),
		run.ActiveCount, run.ExpiredCount, run.SourcesOK, run.SourcesTotal,
		run.QualityScore, result, run.Error, run.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Game != "" {
		query += ` AND game = ?`
		args = append(args, filter.Game)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) (string, bool, error) {
	var html string
	err := s.db.QueryRowContext(ctx,
		`SELECT html FROM page_cache WHERE url = ? AND expires_at > ?`,
		url, s.now().Unix(),
	).Scan(&html)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "sqlite: get cached page")
	}
	return html, true, nil
}

func (s *SQLiteStore) SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url, html, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET html = excluded.html, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		url, html, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM page_cache WHERE expires_at <= ?`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var mode, status string
	var resultJSON sql.NullString

	err := row.Scan(&r.ID, &r.Game, &mode, &status,
		&r.ActiveCount, &r.ExpiredCount, &r.SourcesOK, &r.SourcesTotal,
		&r.QualityScore, &resultJSON, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Mode = model.Mode(mode)
	r.Status = model.RunStatus(status)

	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.GameResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

// marshalResult encodes a run's detailed result, or nil when absent.
func marshalResult(res *model.GameResult) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	return json.Marshal(res)
}
