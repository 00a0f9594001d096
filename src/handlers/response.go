package handlers

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/username/tradeledger/src/logger"
	"github.com/username/tradeledger/src/parsers"
	"github.com/username/tradeledger/src/schema"
	"github.com/username/tradeledger/src/services"
	"github.com/username/tradeledger/src/store"
)

// render writes v as indented JSON when --json is set, otherwise calls text.
func render(c *cli.Context, v any, text func(w io.Writer)) error {
	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return cli.Exit(fmt.Sprintf("failed to encode output: %v", err), 1)
		}
		return nil
	}
	text(w)
	return nil
}

// exitError logs err and converts it into a one-line message with exit
// status 1.
func exitError(action string, err error) error {
	var msg string
	switch {
	case errors.Is(err, services.ErrInputUnreadable):
		msg = "cannot read input"
	case errors.Is(err, services.ErrInvalidContent):
		msg = "input is not a CSV text export"
	case errors.Is(err, services.ErrBrokerUndetected):
		msg = "broker could not be detected"
	case errors.Is(err, parsers.ErrUnknownBroker):
		msg = "unknown broker"
	case errors.Is(err, parsers.ErrBrokerNotImplemented):
		msg = "broker importer not implemented yet"
	case errors.Is(err, store.ErrStoreLocked):
		msg = "trade store is busy"
	case errors.Is(err, schema.ErrNoMigrationPath):
		msg = "unsupported schema version"
	case errors.Is(err, services.ErrPersistenceFailed):
		msg = "could not save"
	case errors.Is(err, services.ErrParsingFailed):
		msg = "could not parse input"
	default:
		msg = "failed"
	}
	logger.L.Warn(action+" failed", "reason", msg, "error", err)
	return cli.Exit(fmt.Sprintf("%s: %s: %v", action, msg, err), 1)
}

func usageError(c *cli.Context, format string, args ...any) error {
	return cli.Exit(fmt.Sprintf("%s\nusage: %s %s %s", fmt.Sprintf(format, args...), c.App.Name, c.Command.Name, c.Command.ArgsUsage), 1)
}

// positionalArg returns the command's single positional argument. Flags
// written after it ("import trades.csv --dry-run") are not parsed by the
// flag package, which stops at the first non-flag, so they are parsed here
// against the command's own flags and applied to c.
func positionalArg(c *cli.Context, what string) (string, error) {
	args := c.Args().Slice()
	if len(args) == 0 {
		return "", usageError(c, "missing %s", what)
	}
	if len(args) == 1 {
		return args[0], nil
	}

	fs := flag.NewFlagSet(c.Command.Name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for _, f := range c.Command.Flags {
		if err := f.Apply(fs); err != nil {
			return "", cli.Exit(fmt.Sprintf("%s: %v", c.Command.Name, err), 1)
		}
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", usageError(c, "%v", err)
	}
	if fs.NArg() > 0 {
		return "", usageError(c, "unexpected arguments: %v", fs.Args())
	}

	var setErr error
	fs.Visit(func(f *flag.Flag) {
		if err := c.Set(f.Name, f.Value.String()); err != nil && setErr == nil {
			setErr = err
		}
	})
	if setErr != nil {
		return "", usageError(c, "%v", setErr)
	}
	return args[0], nil
}
