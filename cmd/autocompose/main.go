// Package main provides the entry point for the autocompose CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mrz1836/autocompose/internal/cli"
	"github.com/mrz1836/autocompose/internal/errors"
)

// Set via ldflags at build time.
var (
	version = "dev"     //nolint:gochecknoglobals // ldflags target
	commit  = "none"    //nolint:gochecknoglobals // ldflags target
	date    = "unknown" //nolint:gochecknoglobals // ldflags target
)

func main() {
	ctx := context.Background()
	err := cli.Execute(ctx, cli.BuildInfo{Version: version, Commit: commit, Date: date})
	if err != nil {
		msg, action := errors.Actionable(err)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		if msg != err.Error() {
			_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Error())
		}
		if action != "" {
			_, _ = fmt.Fprintf(os.Stderr, "  → %s\n", action)
		}
	}
	os.Exit(cli.ExitCodeForError(err))
}
