package cli

import (
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// buildParser constructs the go-flags parser over a fresh Options.
func buildParser() (*goflags.Parser, *Options) {
	opts := &Options{}

	parser := goflags.NewParser(opts, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "outcomes-lookup"
	parser.Usage = "[OPTIONS] EVENT-ID"
	parser.LongDescription = "Look up the processing outcomes recorded for a single event. " +
		"Time filters narrow the scan to the matching partitions, which makes the lookup faster."

	return parser, opts
}

// Run is the main entry point for the lookup CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, os.Args[1:])
}

// RunWithArgs parses the given args and performs the lookup.
func RunWithArgs(version string, args []string) error {
	// Handle --version before the parser: it must work without the
	// required project flag and positional event ID.
	for _, arg := range args {
		if arg == "--version" {
			fmt.Printf("outcomes-lookup %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, opts := buildParser()
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			return nil
		}
		return err
	}

	return opts.run(version)
}
