package lookup

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors returned by Resolve. Callers match with errors.Is.
var (
	// ErrConflictingTimeSpec means day was combined with from/to.
	ErrConflictingTimeSpec = errors.New("conflicting time filters")
	// ErrInvalidRange means the resolved window starts after it ends.
	ErrInvalidRange = errors.New("invalid time range")
)

// Filter holds the lookup predicates parsed from the command line.
// Zero time values and a nil OrgID mean "not set".
type Filter struct {
	ProjectID uint64
	EventID   uint64
	OrgID     *uint64

	Day  time.Time
	From time.Time
	To   time.Time
}

// Range is the half-open [Start, End) window a lookup is bounded to.
// A zero Start means unbounded below; a zero End means unbounded above.
type Range struct {
	Start time.Time
	End   time.Time
}

// IsUnbounded reports whether the range places no timestamp restriction.
func (r Range) IsUnbounded() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Resolve normalizes the filter's time inputs into a canonical Range.
//
// A set Day resolves to [midnight, next midnight) of that UTC day.
// From/To are used directly; a missing From leaves the range unbounded
// below and a missing To defaults to now. With no time input at all the
// range is fully unbounded and the lookup scans every partition.
//
// Resolve fails with ErrConflictingTimeSpec when Day is combined with
// From or To, and with ErrInvalidRange when the resolved window starts
// after it ends. It performs no I/O; now is injected by the caller.
func Resolve(f Filter, now time.Time) (Range, error) {
	hasDay := !f.Day.IsZero()
	hasFrom := !f.From.IsZero()
	hasTo := !f.To.IsZero()

	if hasDay && (hasFrom || hasTo) {
		conflict := "from"
		switch {
		case hasFrom && hasTo:
			conflict = "from/to"
		case hasTo:
			conflict = "to"
		}
		return Range{}, fmt.Errorf("%w: day cannot be combined with %s", ErrConflictingTimeSpec, conflict)
	}

	if hasDay {
		start := midnightUTC(f.Day)
		return Range{Start: start, End: start.AddDate(0, 0, 1)}, nil
	}

	if !hasFrom && !hasTo {
		return Range{}, nil
	}

	r := Range{Start: f.From, End: f.To}
	if !hasTo {
		r.End = now
	}
	if !r.Start.IsZero() && r.Start.After(r.End) {
		return Range{}, fmt.Errorf("%w: from %s is after to %s",
			ErrInvalidRange, r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
	}

	return r, nil
}

// midnightUTC truncates t to the start of its UTC day.
func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
