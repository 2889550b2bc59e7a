package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outcomes-lookup/internal/lookup"
	"outcomes-lookup/internal/storage"
)

// newLookupStore mirrors the store wiring of run, but over a sqlmock
// handle so no ClickHouse is needed.
func newLookupStore(t *testing.T) (*storage.ClickHouseStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewStore(db, "outcomes_raw_local", zerolog.Nop()), mock
}

func mockOutcomeRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"event_id", "org_id", "project_id", "key_id", "timestamp", "outcome", "reason"})
}

func orgPtr(v uint64) *uint64 { return &v }

func boundedQuery(org *uint64) storage.OutcomeQuery {
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	return storage.OutcomeQuery{
		OrgID:     org,
		ProjectID: 42,
		EventID:   1234,
		Range:     lookup.Range{Start: start, End: start.AddDate(0, 0, 1)},
	}
}

// --- parse helpers ---

func TestParseTimestamp_RFC3339(t *testing.T) {
	ts, err := parseTimestamp("2024-03-10T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC), ts.UTC())
}

func TestParseTimestamp_SpaceSeparated(t *testing.T) {
	ts, err := parseTimestamp("2024-03-10 15:04:05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 15, 4, 5, 0, time.UTC), ts)
}

func TestParseTimestamp_DateOnly(t *testing.T) {
	ts, err := parseTimestamp("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), ts)
}

func TestParseTimestamp_Invalid(t *testing.T) {
	_, err := parseTimestamp("yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")
}

func TestParseDay_Valid(t *testing.T) {
	d, err := parseDay("2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), d)
}

func TestParseDay_RejectsTimeOfDay(t *testing.T) {
	_, err := parseDay("2024-03-10 12:00:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid day")
}

func TestFormatOptionals(t *testing.T) {
	assert.Equal(t, "-", formatOptUint(nil))
	assert.Equal(t, "3", formatOptUint(orgPtr(3)))
	assert.Equal(t, "-", formatOptString(nil))
	reason := "quota"
	assert.Equal(t, "quota", formatOptString(&reason))
}

// --- buildQuery ---

func TestBuildQuery_DayResolvesToUTCWindow(t *testing.T) {
	opts := &Options{Project: 42, Day: "2024-03-10"}
	opts.Args.EventID = 1234

	q, err := opts.buildQuery(time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), q.Range.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), q.Range.End)
	assert.Equal(t, uint64(42), q.ProjectID)
	assert.Equal(t, uint64(1234), q.EventID)
}

func TestBuildQuery_MissingToDefaultsToNow(t *testing.T) {
	now := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	opts := &Options{Project: 42, From: "2024-03-10"}
	opts.Args.EventID = 1234

	q, err := opts.buildQuery(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), q.Range.Start)
	assert.Equal(t, now, q.Range.End)
}

func TestBuildQuery_NoTimeFlagsIsUnbounded(t *testing.T) {
	opts := &Options{Project: 42}
	opts.Args.EventID = 1234

	q, err := opts.buildQuery(time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, q.Range.IsUnbounded())
}

func TestBuildQuery_DayConflictsWithFrom(t *testing.T) {
	opts := &Options{Project: 42, Day: "2024-03-10", From: "2024-03-01"}
	opts.Args.EventID = 1234

	_, err := opts.buildQuery(time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrConflictingTimeSpec)
}

func TestBuildQuery_FromAfterToFails(t *testing.T) {
	opts := &Options{Project: 42, From: "2024-03-11", To: "2024-03-10"}
	opts.Args.EventID = 1234

	_, err := opts.buildQuery(time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrInvalidRange)
}

func TestBuildQuery_UnparseableDayFails(t *testing.T) {
	opts := &Options{Project: 42, Day: "March 10th"}
	opts.Args.EventID = 1234

	_, err := opts.buildQuery(time.Now().UTC())
	require.Error(t, err)
}

// --- executeWithStore ---

func TestLookup_HumanOutput(t *testing.T) {
	store, mock := newLookupStore(t)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnRows(mockOutcomeRows().
			AddRow(uint64(1234), uint64(7), uint64(42), uint64(3), start.Add(2*time.Hour), uint8(0), nil).
			AddRow(uint64(1234), uint64(7), uint64(42), nil, start.Add(5*time.Hour), uint8(2), "quota"))

	opts := &Options{}
	output := captureStdout(t, func() {
		err := opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
		require.NoError(t, err)
	})

	assert.Contains(t, output, "event_id: 1234")
	assert.Contains(t, output, "org_id: 7")
	assert.Contains(t, output, "project_id: 42")
	assert.Contains(t, output, "key_id: 3")
	assert.Contains(t, output, "key_id: -")
	assert.Contains(t, output, "timestamp: 2024-03-10 02:00:00")
	assert.Contains(t, output, "outcome: accepted")
	assert.Contains(t, output, "outcome: rate_limited")
	assert.Contains(t, output, "reason: quota")
	assert.Contains(t, output, "reason: -")
	assert.NotContains(t, output, "no outcomes found")

	// Records print as blank-line separated blocks.
	blocks := strings.Split(strings.TrimSpace(output), "\n\n")
	assert.Len(t, blocks, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookup_NoOutcomesFound(t *testing.T) {
	store, mock := newLookupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnRows(mockOutcomeRows())

	opts := &Options{}
	output := captureStdout(t, func() {
		err := opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
		require.NoError(t, err, "an empty result is not an error")
	})

	assert.Equal(t, "no outcomes found", strings.TrimSpace(output))
}

func TestLookup_JSONOutput(t *testing.T) {
	store, mock := newLookupStore(t)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnRows(mockOutcomeRows().
			AddRow(uint64(1234), uint64(7), uint64(42), nil, start.Add(5*time.Hour), uint8(2), "quota"))

	opts := &Options{JSON: true}
	output := captureStdout(t, func() {
		err := opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
		require.NoError(t, err)
	})

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(output)), &rec))
	assert.Equal(t, float64(1234), rec["event_id"])
	assert.Equal(t, float64(7), rec["org_id"])
	assert.Equal(t, "rate_limited", rec["outcome"])
	assert.Equal(t, float64(2), rec["outcome_code"])
	assert.Equal(t, "quota", rec["reason"])
	assert.Equal(t, "2024-03-10T05:00:00Z", rec["timestamp"])
	assert.Nil(t, rec["key_id"])
}

func TestLookup_JSONOutputIsLineDelimited(t *testing.T) {
	store, mock := newLookupStore(t)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnRows(mockOutcomeRows().
			AddRow(uint64(1234), uint64(7), uint64(42), nil, start, uint8(0), nil).
			AddRow(uint64(1234), uint64(7), uint64(42), nil, start.Add(time.Hour), uint8(1), nil))

	opts := &Options{JSON: true}
	output := captureStdout(t, func() {
		err := opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
		require.NoError(t, err)
	})

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "each line is a standalone JSON object: %s", line)
	}
}

func TestLookup_ResolvesOrgWhenOmitted(t *testing.T) {
	store, mock := newLookupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT org_id FROM")).
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}).AddRow(uint64(7)))
	mock.ExpectQuery(regexp.QuoteMeta("org_id = ?")).
		WillReturnRows(mockOutcomeRows())

	opts := &Options{}
	_ = captureStdout(t, func() {
		err := opts.executeWithStore(context.Background(), store, boundedQuery(nil), zerolog.Nop())
		require.NoError(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet(), "the org scan runs before the lookup")
}

func TestLookup_OrgNotFoundFails(t *testing.T) {
	store, mock := newLookupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT org_id FROM")).
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}))

	opts := &Options{}
	err := opts.executeWithStore(context.Background(), store, boundedQuery(nil), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find org for project 42")
	assert.NoError(t, mock.ExpectationsWereMet(), "no lookup runs without an org")
}

func TestLookup_ConnectionFailureSurfaces(t *testing.T) {
	store, mock := newLookupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnError(errors.New("dial tcp 127.0.0.1:9000: connect: connection refused"))

	opts := &Options{}
	err := opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConnectionFailed)
}

func TestLookup_MidStreamFailureSurfaces(t *testing.T) {
	store, mock := newLookupStore(t)

	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := mockOutcomeRows().
		AddRow(uint64(1234), uint64(7), uint64(42), nil, start, uint8(0), nil).
		AddRow(uint64(1234), uint64(7), uint64(42), nil, start, uint8(0), nil).
		RowError(1, errors.New("read: connection reset by peer"))

	mock.ExpectQuery(regexp.QuoteMeta("PREWHERE project_id = ?")).
		WillReturnRows(rows)

	opts := &Options{}
	var err error
	output := captureStdout(t, func() {
		err = opts.executeWithStore(context.Background(), store, boundedQuery(orgPtr(7)), zerolog.Nop())
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConnectionFailed)
	assert.Contains(t, output, "event_id: 1234", "rows before the failure still print")
}

func TestRun_ValidationFailsBeforeStoreOpens(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	// A DSN that cannot even parse: if the run reached storage.Open the
	// error would be "parse dsn", not the filter conflict.
	t.Setenv("OUTCOMES_LOOKUP_DSN", "://unparseable")

	err := RunWithArgs("test", []string{"-p", "42", "--day", "2024-03-10", "--from", "2024-03-01", "1234"})
	require.Error(t, err)
	assert.ErrorIs(t, err, lookup.ErrConflictingTimeSpec)
}

// --- loadConfig ---

func TestLoadConfig_DSNFlagWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("dsn: \"clickhouse://from-file:9000\"\n"), 0644))

	opts := &Options{Config: cfgPath, DSN: "clickhouse://from-flag:9000"}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "clickhouse://from-flag:9000", cfg.DSN)
}

func TestLoadConfig_FileApplies(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("table: \"outcomes_raw_dist\"\n"), 0644))

	opts := &Options{Config: cfgPath}
	cfg, err := opts.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "outcomes_raw_dist", cfg.Table)
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	opts := &Options{Config: "/tmp/nonexistent_outcomes_lookup/config.yaml"}
	_, err := opts.loadConfig()
	require.Error(t, err)
}
