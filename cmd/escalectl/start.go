// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/francoislaurent/escale-go/lib/access"
	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/config"
	"github.com/francoislaurent/escale-go/lib/events"
	"github.com/francoislaurent/escale-go/lib/lock"
	"github.com/francoislaurent/escale-go/lib/manager"
	"github.com/francoislaurent/escale-go/lib/marker"
	"github.com/francoislaurent/escale-go/lib/placeholder"
	"github.com/francoislaurent/escale-go/lib/relay"
)

// defaultLockTimeout applies when a repository's configuration leaves
// lockTimeout unset.
const defaultLockTimeout = time.Hour

// StartCmd runs the manager loop for every configured repository, or one
// selected repository, until interrupted (spec.md §6, "start").
type StartCmd struct {
	Repository string `help:"Run only this repository instead of every one in the configuration."`
}

func (s *StartCmd) Run(cli *CLI) error {
	pidfile := cli.PID
	if pidfile == "" {
		pidfile = defaultPIDFile
	}
	if _, err := os.Stat(pidfile); err == nil {
		return &exitError{1, fmt.Errorf("escalectl is already running; if not, delete %q", pidfile)}
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	names := selectRepositories(cfg, s.Repository)
	if len(names) == 0 {
		return errors.New("no repository to run")
	}

	if err := os.WriteFile(pidfile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return errors.Wrap(err, "writing pid file")
	}
	defer os.Remove(pidfile)

	bus := events.NewLogger()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sub := bus.Subscribe(events.AllEvents)
	go logEvents(ctx, bus, sub)

	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, name := range names {
		repo := cfg.Repositories[name]
		mgr, err := buildManager(name, repo, bus)
		if err != nil {
			return errors.Wrapf(err, "configuring repository %q", name)
		}
		wg.Add(1)
		go func(name string, mgr *manager.Manager) {
			defer wg.Done()
			slog.Info("starting manager loop", "repository", name)
			if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
				errs <- errors.Wrapf(err, "repository %q", name)
			}
		}(name, mgr)
	}

	wg.Wait()
	close(errs)
	var first error
	for err := range errs {
		if first == nil {
			first = err
		}
	}
	return first
}

// logEvents drains the manager loop's event bus to the process log until
// ctx is cancelled, standing in for the GUI/status consumer spec.md §2
// describes the bus as serving (escalectl itself has no such UI, so this
// is the one subscriber it ships with).
func logEvents(ctx context.Context, bus *events.Logger, sub *events.Subscription) {
	defer bus.Unsubscribe(sub)
	for {
		ev, err := sub.Poll(time.Second)
		switch {
		case err == nil:
			slog.Info("event", "type", ev.Type, "data", ev.Data)
		case errors.Is(err, events.ErrTimeout):
			if ctx.Err() != nil {
				return
			}
		default: // events.ErrClosed
			return
		}
	}
}

// StopCmd signals a running escalectl instance to shut down and waits for
// its pid file to disappear (spec.md §6, "stop").
type StopCmd struct {
	Timeout time.Duration `default:"10s" help:"How long to wait for the process to exit."`
}

func (s *StopCmd) Run(cli *CLI) error {
	pidfile := cli.PID
	if pidfile == "" {
		pidfile = defaultPIDFile
	}
	raw, err := os.ReadFile(pidfile)
	if err != nil {
		return &exitError{1, fmt.Errorf("escalectl is not running (%s not found)", pidfile)}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return errors.Wrapf(err, "parsing pid file %s", pidfile)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrap(err, "finding process")
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return errors.Wrapf(err, "signalling pid %d", pid)
	}

	deadline := time.Now().Add(s.Timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidfile); os.IsNotExist(err) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("escalectl (pid %d) did not stop within %s", pid, s.Timeout)
}

// selectRepositories returns name if it names a repository in cfg, every
// repository name when name is empty, or nil if name is set but unknown.
func selectRepositories(cfg *config.Config, name string) []string {
	if name != "" {
		if _, ok := cfg.Repositories[name]; !ok {
			return nil
		}
		return []string{name}
	}
	names := make([]string, 0, len(cfg.Repositories))
	for n := range cfg.Repositories {
		names = append(names, n)
	}
	return names
}

// buildManager wires one configuration entry into the lock/placeholder/
// relay/access/manager stack (spec.md §2, "Manager loop" composition).
//
// The repository name is used as the lock/placeholder client identifier
// (spec.md §4.3's "owner"). That is only unique per configuration file:
// two hosts configured with the same repository name would see each
// other's locks as their own and misdetect crashes on repair. Fine for
// the single-host deployment this command targets; a multi-host setup
// needs a host-unique identifier here instead (e.g. hostname+name).
func buildManager(name string, repo config.Repository, bus *events.Logger) (*manager.Manager, error) {
	if repo.Address == "" {
		return nil, errors.New("missing address")
	}
	if repo.Path == "" {
		return nil, errors.New("missing local path")
	}
	mode, err := access.ParseMode(repo.Mode)
	if err != nil {
		return nil, err
	}

	store := blobstore.NewFSStore(strings.TrimPrefix(repo.Address, "file://"))
	codec := repo.MarkerPrefixes.Apply(marker.Default())

	lockTimeout := time.Duration(repo.LockTimeout)
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	locks := lock.New(store, codec, name, lockTimeout)
	if repo.PollInterval > 0 {
		locks.PollInterval = time.Duration(repo.PollInterval)
	}

	placeholders := placeholder.New(store, codec, name)

	pullerCount := repo.PullerCount
	if pullerCount <= 0 {
		pullerCount = 1
	}
	engine := relay.New(store, codec, locks, placeholders, pullerCount)

	var table *access.Table
	if mode == access.ModeConservative || mode == access.ModeShared {
		table, err = access.OpenTable(repo.Path + ".access.db")
		if err != nil {
			return nil, errors.Wrap(err, "opening access table")
		}
	}
	ctl, err := access.NewController(name, repo.Path, mode, table)
	if err != nil {
		return nil, err
	}

	mgr := manager.New(name, ctl, engine, bus)
	if repo.TickInterval > 0 {
		mgr.TickInterval = time.Duration(repo.TickInterval)
	}
	return mgr, nil
}
