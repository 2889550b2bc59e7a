package storage

import (
	"fmt"
	"time"

	"outcomes-lookup/internal/lookup"
)

// Outcome is the recorded processing result for an event, as stored in
// the outcome column.
type Outcome uint8

// Outcome codes written by the ingest pipeline.
const (
	OutcomeAccepted    Outcome = 0
	OutcomeFiltered    Outcome = 1
	OutcomeRateLimited Outcome = 2
	OutcomeInvalid     Outcome = 3
	OutcomeAbuse       Outcome = 4
)

// String returns the canonical outcome name, or "unknown(N)" for codes
// this tool does not know about.
func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeAbuse:
		return "abuse"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(o))
	}
}

// OutcomeRecord is a single row returned by a lookup. Nullable columns
// surface as nil pointers. Records are read-only: the tool relays them
// to the printer and never writes back.
type OutcomeRecord struct {
	EventID   uint64
	OrgID     uint64
	ProjectID uint64
	KeyID     *uint64
	Timestamp time.Time
	Outcome   Outcome
	Reason    *string
}

// OutcomeQuery carries the fully resolved predicates for one lookup.
type OutcomeQuery struct {
	OrgID     *uint64
	ProjectID uint64
	EventID   uint64
	Range     lookup.Range
}

// outcomeColumns lists the selected columns in scan order.
var outcomeColumns = []string{
	"event_id", "org_id", "project_id", "key_id", "timestamp", "outcome", "reason",
}
