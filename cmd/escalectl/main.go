// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Command escalectl is the controlling tool referenced but not specified by
// the core library (spec.md §6, "CLI surface of the controlling tool"):
// start/stop the manager loop, inspect or change a file's access modifiers,
// and move or archive a repository's relay-side content.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"

	_ "github.com/francoislaurent/escale-go/lib/automaxprocs"
)

const defaultPIDFile = "escalectl.pid"

// CLI is the top-level command, grounded on cmd/syncthing/cli/main.go and
// cmd/infra/ursrv/main.go's kong.Parse/ctx.Run() pattern.
type CLI struct {
	Config string `short:"c" default:"escale.yaml" help:"Path to the repositories configuration file."`
	PID    string `name:"pidfile" help:"Path to the pid file used by start/stop." default:"escalectl.pid"`

	Start   StartCmd   `cmd:"" help:"Run the manager loop for one or all configured repositories."`
	Stop    StopCmd    `cmd:"" help:"Terminate a running escalectl instance and its children."`
	Access  AccessCmd  `cmd:"" help:"Query or set a file's per-repository access modifiers."`
	Migrate MigrateCmd `cmd:"" help:"Change a repository's relay endpoint."`
	Backup  BackupCmd  `cmd:"" help:"Archive a repository's relay-side content."`
	Restore RestoreCmd `cmd:"" help:"Restore a repository's relay-side content from an archive."`
}

// exitError lets a subcommand request a specific process exit code without
// main having to inspect error strings (spec.md §6, "Exit codes": 1 for
// already-running/not-running, anything else for unhandled errors).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("escalectl"),
		kong.Description("Controls an escale-go repository and its manager loop."),
	)
	err := ctx.Run(&cli)
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		fmt.Fprintf(os.Stderr, "escalectl: %v\n", exit.err)
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "escalectl: %+v\n", err)
	os.Exit(2)
}
