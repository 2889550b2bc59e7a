package cli

// Options holds the full flag surface of the lookup tool. Zero time
// flags mean an unbounded search over all partitions.
type Options struct {
	Config  string  `long:"config" description:"Path to config file" default:""`
	DSN     string  `long:"dsn" description:"ClickHouse DSN, overrides config and OUTCOMES_LOOKUP_DSN"`
	Org     *uint64 `short:"o" long:"org" description:"Organization ID owning the project (resolved from the datastore when omitted)"`
	Project uint64  `short:"p" long:"project" description:"Project ID the event was sent to" required:"yes"`
	Day     string  `long:"day" description:"Calendar day to search, YYYY-MM-DD (UTC)"`
	From    string  `long:"from" description:"Lower bound timestamp, inclusive"`
	To      string  `long:"to" description:"Upper bound timestamp, exclusive; defaults to now when --from is given"`
	JSON    bool    `long:"json" description:"Output records as JSON, one object per line"`
	Verbose bool    `short:"v" long:"verbose" description:"Enable debug logging"`
	Version bool    `long:"version" description:"Show version and exit"`

	Args struct {
		EventID uint64 `positional-arg-name:"event-id" description:"Numeric event ID to look up"`
	} `positional-args:"yes" required:"yes"`
}
