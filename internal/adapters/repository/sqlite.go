package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/airstrum/internal/domain/model"
	"github.com/okian/airstrum/internal/domain/types"
	"github.com/okian/airstrum/pkg/metrics"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed schema.sql
var schema string

const memoryPath = ":memory:"

const rankedQuery = `SELECT
	DENSE_RANK() OVER (ORDER BY score DESC, max_combo DESC) AS leaderboard_rank,
	session_id, player_id, score, max_combo, perfect_count, great_count, miss_count,
	started_at, ended_at
 FROM submissions`

const rankOrder = ` ORDER BY score DESC, max_combo DESC, ended_at ASC, session_id ASC`

// SQLiteStore implements Store on an SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" opens a private in-process database.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := memoryPath
	if path != memoryPath {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: an in-memory database lives per connection, and
	// writes are serialized by SQLite anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Submit(ctx context.Context, sum model.SessionSummary) (bool, error) { //nolint:gocritic // hugeParam
	inserted, err := s.submit(ctx, sum)
	metrics.RecordSubmission(err)
	return inserted, err
}

func (s *SQLiteStore) submit(ctx context.Context, sum model.SessionSummary) (bool, error) { //nolint:gocritic // hugeParam
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(sum.SessionID) == "" {
		return false, fmt.Errorf("%w: session id is required", ErrInvalid)
	}
	if sum.Score < 0 || sum.MaxCombo < 0 {
		return false, fmt.Errorf("%w: negative score or combo", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (
		   session_id, player_id, score, max_combo,
		   perfect_count, great_count, miss_count,
		   started_at, ended_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		sum.SessionID, sum.PlayerID, sum.Score, sum.MaxCombo,
		sum.PerfectCount, sum.GreatCount, sum.MissCount,
		toMillis(sum.StartedAt), toMillis(sum.EndedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert submission: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStore) Rank(ctx context.Context, sessionID string) (types.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT * FROM (`+rankedQuery+`) WHERE session_id = ?`, sessionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		return types.Entry{}, fmt.Errorf("rank session: %w", err)
	}
	return e, nil
}

func (s *SQLiteStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, rankedQuery+rankOrder+` LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]types.Entry, 0, n)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (types.Entry, error) {
	var e types.Entry
	var startedAt, endedAt int64
	err := row.Scan(
		&e.Rank, &e.SessionID, &e.PlayerID, &e.Score, &e.MaxCombo,
		&e.PerfectCount, &e.GreatCount, &e.MissCount,
		&startedAt, &endedAt,
	)
	if err != nil {
		return types.Entry{}, err
	}
	e.Duration = time.UnixMilli(endedAt).Sub(time.UnixMilli(startedAt)).Seconds()
	return e, nil
}
