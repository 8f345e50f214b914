package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/thiefmaster/librelay/comm"
)

// parseActions turns CLI words like "all-on" or "version" into commands. Nothing is
// sent unless every word is valid.
func parseActions(names []string) ([]comm.Command, error) {
	cmds := make([]comm.Command, 0, len(names))
	for _, name := range names {
		s, err := comm.ParseSymbol(name)
		if err != nil {
			return nil, err
		}
		cmd, err := comm.CommandFor(s)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// actionName is the CLI spelling of s, e.g. "all-on".
func actionName(s comm.Symbol) string {
	return strings.ToLower(strings.ReplaceAll(s.String(), "_", "-"))
}

func formatResult(res comm.Result) string {
	name := actionName(res.Command.Symbol())
	if res.Err != nil {
		return fmt.Sprintf("%s: error: %v", name, res.Err)
	}
	if res.Command.Action() == comm.Query {
		return fmt.Sprintf("%s: % x", name, res.Data)
	}
	return fmt.Sprintf("%s: wrote %d byte(s)", name, res.Written)
}

type commander interface {
	Do(ctx context.Context, cmd comm.Command) (comm.Result, error)
}

// runActions executes cmds in order and prints one line per result. It stops at the
// first failure.
func runActions(ctx context.Context, client commander, cmds []comm.Command, w io.Writer) error {
	for _, cmd := range cmds {
		res, err := client.Do(ctx, cmd)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		fmt.Fprintln(w, formatResult(res))
		if res.Err != nil {
			return fmt.Errorf("%s: %w", cmd, res.Err)
		}
	}
	return nil
}
