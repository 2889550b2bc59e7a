package query

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeColumn is the timestamp column assumed until TimeColumn
// overrides it.
const DefaultTimeColumn = "timestamp"

// Builder assembles one parameterized SELECT statement.
type Builder struct {
	table        string
	columns      []string
	prewhere     []string
	prewhereArgs []interface{}
	where        []string
	whereArgs    []interface{}
	timeColumn   string
	start        time.Time
	end          time.Time
	orderBy      string
	limit        int
}

// New starts a builder for the given table.
func New(table string) *Builder {
	return &Builder{table: table, timeColumn: DefaultTimeColumn}
}

// Select adds result columns. At least one column is required to Build.
func (b *Builder) Select(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// PrewhereEq adds an equality condition to the PREWHERE bucket.
func (b *Builder) PrewhereEq(column string, value interface{}) *Builder {
	b.prewhere = append(b.prewhere, column+" = ?")
	b.prewhereArgs = append(b.prewhereArgs, value)
	return b
}

// Eq adds an equality condition to the WHERE bucket.
func (b *Builder) Eq(column string, value interface{}) *Builder {
	b.where = append(b.where, column+" = ?")
	b.whereArgs = append(b.whereArgs, value)
	return b
}

// NotEq adds an inequality condition to the WHERE bucket.
func (b *Builder) NotEq(column string, value interface{}) *Builder {
	b.where = append(b.where, column+" != ?")
	b.whereArgs = append(b.whereArgs, value)
	return b
}

// TimeColumn overrides the column TimeRange bounds apply to.
func (b *Builder) TimeColumn(name string) *Builder {
	b.timeColumn = name
	return b
}

// TimeRange bounds the time column to the half-open window [start, end).
// The bounds join the PREWHERE bucket after any explicit conditions; a
// zero start or end emits no predicate for that side.
func (b *Builder) TimeRange(start, end time.Time) *Builder {
	b.start = start
	b.end = end
	return b
}

// OrderBy sets the ordering column. A "-" prefix orders descending.
func (b *Builder) OrderBy(column string) *Builder {
	b.orderBy = column
	return b
}

// Limit caps the result set. Values <= 0 leave the query unlimited.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Build renders the statement and its positional arguments. Argument
// order follows predicate order: PREWHERE conditions, time bounds, then
// WHERE conditions.
func (b *Builder) Build() (string, []interface{}, error) {
	if b.table == "" {
		return "", nil, errors.New("query: table is required")
	}
	if len(b.columns) == 0 {
		return "", nil, errors.New("query: at least one select column is required")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	prewhere := append([]string{}, b.prewhere...)
	args := append([]interface{}{}, b.prewhereArgs...)
	if !b.start.IsZero() {
		prewhere = append(prewhere, b.timeColumn+" >= ?")
		args = append(args, b.start)
	}
	if !b.end.IsZero() {
		prewhere = append(prewhere, b.timeColumn+" < ?")
		args = append(args, b.end)
	}

	if len(prewhere) > 0 {
		sb.WriteString(" PREWHERE ")
		sb.WriteString(strings.Join(prewhere, " AND "))
	}
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
		args = append(args, b.whereArgs...)
	}

	if b.orderBy != "" {
		column, direction := b.orderBy, ""
		if strings.HasPrefix(column, "-") {
			column, direction = column[1:], " DESC"
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(column)
		sb.WriteString(direction)
	}

	if b.limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}

	return sb.String(), args, nil
}
