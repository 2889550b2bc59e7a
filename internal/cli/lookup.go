package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"outcomes-lookup/internal/config"
	"outcomes-lookup/internal/logging"
	"outcomes-lookup/internal/lookup"
	"outcomes-lookup/internal/storage"
)

// run wires config, logging, and the store, then hands off to
// executeWithStore for the actual lookup.
func (o *Options) run(version string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Logging.Level
	if o.Verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Pretty: cfg.Logging.Pretty})
	logger.Debug().Str("version", version).Str("table", cfg.Table).Msg("starting lookup")

	// Resolve time filters before anything touches the network, so bad
	// input fails without a connection attempt.
	q, err := o.buildQuery(time.Now().UTC())
	if err != nil {
		return err
	}
	if q.Range.IsUnbounded() {
		logger.Debug().Msg("no time filter, scanning all partitions")
	} else {
		logger.Debug().Time("start", q.Range.Start).Time("end", q.Range.End).Msg("resolved time window")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout := cfg.QueryTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	store, err := storage.Open(storage.Options{
		DSN:         cfg.DSN,
		Table:       cfg.Table,
		DialTimeout: cfg.DialTimeout(),
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	return o.executeWithStore(ctx, store, q, logger)
}

// loadConfig resolves the layered configuration and applies flag
// overrides, which win over both the file and the environment.
func (o *Options) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.Config != "" {
		cfg, err = config.Load(o.Config)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}

	if o.DSN != "" {
		cfg.DSN = o.DSN
	}
	return cfg, nil
}

// buildQuery turns raw flag values into a resolved OutcomeQuery. All
// input validation happens here, before any I/O.
func (o *Options) buildQuery(now time.Time) (storage.OutcomeQuery, error) {
	filter := lookup.Filter{
		ProjectID: o.Project,
		EventID:   o.Args.EventID,
		OrgID:     o.Org,
	}

	var err error
	if o.Day != "" {
		if filter.Day, err = parseDay(o.Day); err != nil {
			return storage.OutcomeQuery{}, err
		}
	}
	if o.From != "" {
		if filter.From, err = parseTimestamp(o.From); err != nil {
			return storage.OutcomeQuery{}, err
		}
	}
	if o.To != "" {
		if filter.To, err = parseTimestamp(o.To); err != nil {
			return storage.OutcomeQuery{}, err
		}
	}

	rng, err := lookup.Resolve(filter, now)
	if err != nil {
		return storage.OutcomeQuery{}, err
	}

	return storage.OutcomeQuery{
		OrgID:     o.Org,
		ProjectID: o.Project,
		EventID:   o.Args.EventID,
		Range:     rng,
	}, nil
}

// executeWithStore runs the lookup against a provided store (split out
// for testing). The org is resolved from the datastore when the flag
// was omitted; outcome rows for an event always carry a non-zero org,
// so including it keeps the scan narrow.
func (o *Options) executeWithStore(ctx context.Context, store storage.Store, q storage.OutcomeQuery, logger zerolog.Logger) error {
	started := time.Now()

	if q.OrgID == nil {
		orgID, ok, err := store.FindOrgID(ctx, q.ProjectID)
		if err != nil {
			return fmt.Errorf("find org for project %d: %w", q.ProjectID, err)
		}
		if !ok {
			return fmt.Errorf("could not find org for project %d; pass --org explicitly", q.ProjectID)
		}
		q.OrgID = &orgID
	}

	rows, err := store.QueryOutcomes(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	var n int
	if o.JSON {
		n, err = o.printJSON(rows)
	} else {
		n, err = o.printHuman(rows)
	}
	if err != nil {
		return err
	}

	logger.Debug().Int("records", n).Dur("elapsed", time.Since(started)).Msg("lookup complete")
	return nil
}

// printHuman writes one "field: value" block per record, separated by
// blank lines. Nullable columns print as "-".
func (o *Options) printHuman(rows *storage.OutcomeRows) (int, error) {
	count := 0
	for rows.Next() {
		rec := rows.Record()
		if count > 0 {
			fmt.Println()
		}
		fmt.Printf("event_id: %d\n", rec.EventID)
		fmt.Printf("project_id: %d\n", rec.ProjectID)
		fmt.Printf("org_id: %d\n", rec.OrgID)
		fmt.Printf("key_id: %s\n", formatOptUint(rec.KeyID))
		fmt.Printf("timestamp: %s\n", rec.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		fmt.Printf("outcome: %s\n", rec.Outcome)
		fmt.Printf("reason: %s\n", formatOptString(rec.Reason))
		count++
	}
	if err := rows.Err(); err != nil {
		return count, err
	}

	if count == 0 {
		fmt.Println("no outcomes found")
	}
	return count, nil
}

type jsonRecord struct {
	EventID     uint64  `json:"event_id"`
	ProjectID   uint64  `json:"project_id"`
	OrgID       uint64  `json:"org_id"`
	KeyID       *uint64 `json:"key_id"`
	Timestamp   string  `json:"timestamp"`
	Outcome     string  `json:"outcome"`
	OutcomeCode uint8   `json:"outcome_code"`
	Reason      *string `json:"reason"`
}

// printJSON writes one JSON object per line so large results can be
// piped to jq without buffering.
func (o *Options) printJSON(rows *storage.OutcomeRows) (int, error) {
	enc := json.NewEncoder(os.Stdout)
	count := 0
	for rows.Next() {
		rec := rows.Record()
		out := jsonRecord{
			EventID:     rec.EventID,
			ProjectID:   rec.ProjectID,
			OrgID:       rec.OrgID,
			KeyID:       rec.KeyID,
			Timestamp:   rec.Timestamp.UTC().Format(time.RFC3339),
			Outcome:     rec.Outcome.String(),
			OutcomeCode: uint8(rec.Outcome),
			Reason:      rec.Reason,
		}
		if err := enc.Encode(out); err != nil {
			return count, err
		}
		count++
	}
	return count, rows.Err()
}
