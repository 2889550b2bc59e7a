// Package query provides a fluent builder for ClickHouse SELECT queries.
//
// The builder separates conditions into two buckets: PREWHERE for the
// predicates ClickHouse uses to prune time partitions and data blocks
// early (project, org, timestamp bounds), and WHERE for plain row
// filters. Filter values are never interpolated into the statement;
// Build returns the SQL text with ? placeholders plus the matching
// positional argument slice.
//
// Example:
//
//	sql, args, err := query.New("outcomes_raw_local").
//		Select("event_id", "timestamp", "outcome").
//		PrewhereEq("project_id", 42).
//		TimeRange(start, end).
//		Eq("event_id", 7).
//		OrderBy("timestamp").
//		Build()
//
//	rows, err := db.QueryContext(ctx, sql, args...)
//
// Table and column names are trusted identifiers supplied by the
// program or its configuration, not by query values; ClickHouse cannot
// bind identifiers as parameters. Zero time bounds are skipped, so an
// unbounded range simply emits no timestamp predicate and the statement
// stays well-formed.
package query
