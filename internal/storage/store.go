package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"outcomes-lookup/internal/storage/query"
)

// Execution failures fall into exactly two buckets. ErrConnectionFailed
// covers everything that kept the query from reaching the server (dial,
// TLS, auth, a connection dying mid-stream); ErrQueryRejected covers a
// reachable server refusing the statement itself.
var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrQueryRejected    = errors.New("query rejected")
)

// Store defines the read operations a lookup needs from the outcomes
// datastore.
type Store interface {
	QueryOutcomes(ctx context.Context, q OutcomeQuery) (*OutcomeRows, error)
	FindOrgID(ctx context.Context, projectID uint64) (uint64, bool, error)
	Close() error
}

// Options configures how the store reaches ClickHouse.
type Options struct {
	DSN         string
	Table       string
	DialTimeout time.Duration
}

// ClickHouseStore implements Store against a ClickHouse endpoint through
// database/sql.
type ClickHouseStore struct {
	db     *sql.DB
	table  string
	logger zerolog.Logger
}

// Open builds a store for the configured endpoint. No connection is
// established here; database/sql dials lazily on the first query.
func Open(opts Options, logger zerolog.Logger) (*ClickHouseStore, error) {
	chOpts, err := clickhouse.ParseDSN(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.DialTimeout > 0 {
		chOpts.DialTimeout = opts.DialTimeout
	}
	return NewStore(clickhouse.OpenDB(chOpts), opts.Table, logger), nil
}

// NewStore wraps an already-opened database handle. Tests inject their
// handle here.
func NewStore(db *sql.DB, table string, logger zerolog.Logger) *ClickHouseStore {
	return &ClickHouseStore{db: db, table: table, logger: logger}
}

// QueryOutcomes runs a single lookup and returns a lazy stream over the
// matching rows in ascending timestamp order. The caller owns the stream
// and must Close it. Zero range bounds are left unconstrained.
func (s *ClickHouseStore) QueryOutcomes(ctx context.Context, q OutcomeQuery) (*OutcomeRows, error) {
	b := query.New(s.table).
		Select(outcomeColumns...).
		PrewhereEq("project_id", q.ProjectID)
	if q.OrgID != nil {
		b.PrewhereEq("org_id", *q.OrgID)
	}
	stmt, args, err := b.
		TimeRange(q.Range.Start, q.Range.End).
		Eq("event_id", q.EventID).
		OrderBy("timestamp").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build lookup query: %w", err)
	}

	s.logger.Debug().Str("sql", stmt).Msg("executing lookup")

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	return &OutcomeRows{rows: rows}, nil
}

// FindOrgID scans for the org owning a project so the lookup can include
// org_id in its pruning predicate. The boolean is false when the project
// has no rows with a non-zero org.
func (s *ClickHouseStore) FindOrgID(ctx context.Context, projectID uint64) (uint64, bool, error) {
	stmt, args, err := query.New(s.table).
		Select("org_id").
		PrewhereEq("project_id", projectID).
		NotEq("org_id", uint64(0)).
		Limit(1).
		Build()
	if err != nil {
		return 0, false, fmt.Errorf("build org query: %w", err)
	}

	var orgID uint64
	err = s.db.QueryRowContext(ctx, stmt, args...).Scan(&orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classifyError(err)
	}

	s.logger.Debug().Uint64("project_id", projectID).Uint64("org_id", orgID).Msg("resolved org")
	return orgID, true, nil
}

// Close releases the underlying connection pool.
func (s *ClickHouseStore) Close() error {
	return s.db.Close()
}

// OutcomeRows streams lookup results off the wire one record at a time.
// It is single-pass: once Next returns false the stream is done and a
// fresh query is needed to read again. Close releases the underlying
// cursor and is safe to call at any point.
type OutcomeRows struct {
	rows *sql.Rows
	rec  OutcomeRecord
	err  error
}

// Next advances to the next record, reporting false at the end of the
// stream or on error. Check Err after the loop.
func (r *OutcomeRows) Next() bool {
	if r.err != nil {
		return false
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.err = classifyError(err)
		}
		return false
	}

	var rec OutcomeRecord
	var outcome uint8
	if err := r.rows.Scan(
		&rec.EventID, &rec.OrgID, &rec.ProjectID, &rec.KeyID,
		&rec.Timestamp, &outcome, &rec.Reason,
	); err != nil {
		r.err = fmt.Errorf("scan outcome row: %w", err)
		return false
	}
	rec.Outcome = Outcome(outcome)
	r.rec = rec
	return true
}

// Record returns the record read by the last successful Next.
func (r *OutcomeRows) Record() OutcomeRecord { return r.rec }

// Err returns the first error hit while streaming, if any.
func (r *OutcomeRows) Err() error { return r.err }

// Close releases the cursor and its connection.
func (r *OutcomeRows) Close() error { return r.rows.Close() }

// isAuthCode reports whether a ClickHouse server exception means the
// session was refused rather than the statement.
func isAuthCode(code int32) bool {
	switch code {
	case 193, 194, 195, 516: // wrong password, password required, address not allowed, authentication failed
		return true
	}
	return false
}

// classifyError sorts a driver error into the two execution failure
// modes. Server exceptions are query rejections, except authentication
// refusals, which count as connection failures. Anything that is not a
// server exception never reached the server.
func classifyError(err error) error {
	var exc *clickhouse.Exception
	if errors.As(err, &exc) {
		if isAuthCode(exc.Code) {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		return fmt.Errorf("%w: %w", ErrQueryRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
}
