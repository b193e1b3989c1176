// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package manager drives the repetitive "list, select, transfer" loop
// (spec.md §2, "Manager loop") that ties lib/access's local view of a
// repository to lib/relay's remote operations.
package manager

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/francoislaurent/escale-go/lib/access"
	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/escalelog"
	"github.com/francoislaurent/escale-go/lib/events"
	"github.com/francoislaurent/escale-go/lib/metrics"
	"github.com/francoislaurent/escale-go/lib/relay"
)

// DefaultTickInterval is how often Run drives a tick absent configuration.
const DefaultTickInterval = 5 * time.Second

// Manager drives one repository's synchronization loop.
type Manager struct {
	Repository   string
	Access       *access.Controller
	Engine       *relay.Engine
	Events       *events.Logger
	TickInterval time.Duration

	logger *escalelog.Logger
}

// New builds a Manager for one repository. events may be nil, in which
// case ticks are not published anywhere.
func New(repository string, ctl *access.Controller, engine *relay.Engine, bus *events.Logger) *Manager {
	return &Manager{
		Repository:   repository,
		Access:       ctl,
		Engine:       engine,
		Events:       bus,
		TickInterval: DefaultTickInterval,
		logger:       escalelog.For("manager"),
	}
}

func (m *Manager) log(t events.EventType, data interface{}) {
	if m.Events != nil {
		m.Events.Log(t, data)
	}
}

// Tick drives one iteration: repair any corrupted locks, push local files
// that are ready to upload, then pull remote files that are ready to
// download (spec.md §2, "list → select → transfer").
func (m *Manager) Tick(ctx context.Context) error {
	m.log(events.TickStarted, m.Repository)
	metrics.Ticks.WithLabelValues(m.Repository).Inc()

	if err := m.repairCorrupted(ctx); err != nil {
		return fmt.Errorf("manager: repairing %s: %w", m.Repository, err)
	}
	if err := m.pushReadable(ctx); err != nil {
		return fmt.Errorf("manager: pushing %s: %w", m.Repository, err)
	}
	pending, err := m.pullReady(ctx)
	if err != nil {
		return fmt.Errorf("manager: pulling %s: %w", m.Repository, err)
	}

	metrics.PendingFiles.WithLabelValues(m.Repository).Set(float64(pending))
	m.log(events.TickCompleted, m.Repository)
	return nil
}

func (m *Manager) repairCorrupted(ctx context.Context) error {
	corrupted, err := m.Engine.ListCorrupted(ctx, "", true)
	if err != nil {
		return err
	}
	for _, info := range corrupted {
		handle := m.Access.Accessor(info.Target)
		action, err := m.Engine.Repair(ctx, info, handle.Exists())
		if err != nil {
			if blobstore.IsUnrecoverableError(err) {
				return err
			}
			m.logger.Warnf("repairing lock for %s: %v", info.Target, err)
			continue
		}
		metrics.LockRepairs.WithLabelValues(m.Repository, string(info.Mode)).Inc()
		m.log(events.LockRepaired, info.Target)
		if action.DeleteLocal {
			if err := handle.Delete(); err != nil {
				m.logger.Warnf("deleting local copy of %s after repair: %v", info.Target, err)
			}
		}
	}
	return nil
}

func (m *Manager) pushReadable(ctx context.Context) error {
	files, err := m.Access.ListFiles()
	if err != nil {
		return err
	}
	readable, err := m.Access.Readable(files)
	if err != nil {
		return err
	}
	for _, f := range readable {
		local := m.Access.Accessor(f)
		if !local.Exists() {
			continue
		}
		meta := ""
		if info, err := statModTime(m.Access, f); err == nil {
			meta = info
		}
		ok, err := m.Engine.Push(ctx, m.localPath(f), f, meta, false)
		if err != nil {
			metrics.Transfers.WithLabelValues(m.Repository, "push", "error").Inc()
			if blobstore.IsUnrecoverableError(err) {
				return err
			}
			m.logger.Warnf("pushing %s: %v", f, err)
			continue
		}
		if ok {
			metrics.Transfers.WithLabelValues(m.Repository, "push", "ok").Inc()
			m.log(events.FilePushed, f)
			if err := m.Access.ConfirmPush(f); err != nil {
				m.logger.Warnf("confirming push of %s: %v", f, err)
			}
		}
	}
	return nil
}

func (m *Manager) pullReady(ctx context.Context) (int, error) {
	ready, err := m.Engine.ListReady(ctx, "", true)
	if err != nil {
		return 0, err
	}
	for _, f := range ready {
		local, ok, err := m.Access.Writable(f)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		transferred, err := m.Engine.Pop(ctx, f, local, true, false)
		if err != nil {
			metrics.Transfers.WithLabelValues(m.Repository, "pop", "error").Inc()
			if blobstore.IsUnrecoverableError(err) {
				return 0, err
			}
			m.logger.Warnf("pulling %s: %v", f, err)
			continue
		}
		if transferred {
			metrics.Transfers.WithLabelValues(m.Repository, "pop", "ok").Inc()
			m.log(events.FilePopped, f)
			if err := m.Access.ConfirmPull(f); err != nil {
				m.logger.Warnf("confirming pull of %s: %v", f, err)
			}
		}
	}
	return len(ready), nil
}

func (m *Manager) localPath(f string) string {
	return m.Access.Accessor(f).Path()
}

func statModTime(ctl *access.Controller, f string) (string, error) {
	mtime, err := ctl.ModTime(f)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(mtime.Unix(), 10), nil
}

// Run drives Tick every TickInterval until ctx is cancelled. A failed tick
// is logged and does not stop the loop, since a transient transport
// failure is expected to recover on the next tick (spec.md §7, "Transient
// transport") — except an unrecoverable one (EMFILE exhaustion, spec.md
// §7 "Unrecoverable transport"), which terminates the worker immediately
// rather than spinning on an exhausted file descriptor table.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := m.Tick(ctx); err != nil {
			if blobstore.IsUnrecoverableError(err) {
				m.logger.Errorf("tick failed unrecoverably, stopping: %v", err)
				return err
			}
			m.logger.Errorf("tick failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
