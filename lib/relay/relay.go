// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package relay composes lib/blobstore, lib/lock and lib/placeholder into
// the five file operations of spec.md §4: push, pop, get, delete and
// repair, each guarded by the distributed lock protocol.
package relay

import (
	"context"

	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/escalelog"
	"github.com/francoislaurent/escale-go/lib/lock"
	"github.com/francoislaurent/escale-go/lib/marker"
	"github.com/francoislaurent/escale-go/lib/placeholder"
)

// Engine is the relay coordination protocol bound to one repository: a
// blob store plus the lock and placeholder managers layered on it.
type Engine struct {
	Store        blobstore.Store
	Codec        marker.Codec
	Locks        *lock.Manager
	Placeholders *placeholder.Manager

	// PullerCount is the number of pullers expected to read a file before
	// its remote copy may be destroyed by Pop (spec.md §4.2). Values <= 1
	// mean every Pop is destructive, matching placeholder=True in
	// original_source's AbstractRelay.pop.
	PullerCount int

	logger *escalelog.Logger
}

// New builds an Engine from its three layers.
func New(store blobstore.Store, codec marker.Codec, locks *lock.Manager, placeholders *placeholder.Manager, pullerCount int) *Engine {
	return &Engine{
		Store:        store,
		Codec:        codec,
		Locks:        locks,
		Placeholders: placeholders,
		PullerCount:  pullerCount,
		logger:       escalelog.For("relay"),
	}
}

// Exists reports whether target is present on the store, independent of
// lock or placeholder state.
func (e *Engine) Exists(ctx context.Context, target string) (bool, error) {
	_, err := e.Store.Size(ctx, target)
	if err == nil {
		return true, nil
	}
	if blobstore.IsNotFound(err) {
		return false, nil
	}
	return false, blobstore.Escalate(err)
}

// Push uploads localFile to target under a write lock, updating target's
// placeholder first if meta (conventionally a modification time) is
// given (spec.md §4.2). It returns false without transferring anything if
// the lock could not be acquired (only possible when blocking is false).
func (e *Engine) Push(ctx context.Context, localFile, target string, meta string, blocking bool) (bool, error) {
	ok, err := e.Locks.Acquire(ctx, target, lock.ModeWrite, blocking)
	if err != nil || !ok {
		return false, err
	}
	if meta != "" {
		if err := e.Placeholders.Update(ctx, target, meta); err != nil {
			return false, err
		}
	}
	if err := e.Store.Push(ctx, localFile, target); err != nil {
		// The lock is deliberately left in place: a push that failed
		// partway is exactly the condition repair's write-mode branch is
		// built to clean up on the next corrupted-lock sweep.
		return false, blobstore.Escalate(err)
	}
	if err := e.Locks.Release(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// Pop downloads target to localDest and, unless usePlaceholder and
// PullerCount together say other pullers still need it, deletes target
// from the store (spec.md §4.2, puller-count-gated deletion).
func (e *Engine) Pop(ctx context.Context, target, localDest string, usePlaceholder, blocking bool) (bool, error) {
	ok, err := e.Locks.Acquire(ctx, target, lock.ModeRead, blocking)
	if err != nil || !ok {
		return false, err
	}

	hasPlaceholder := false
	retain := false
	if usePlaceholder {
		hasPlaceholder, err = e.Placeholders.Has(ctx, target)
		if err != nil {
			return false, err
		}
		if hasPlaceholder && e.PullerCount > 1 {
			n, err := e.Placeholders.PendingReads(ctx, target)
			if err != nil {
				return false, err
			}
			retain = n < e.PullerCount-1
		}
	}

	if retain {
		err = e.Store.Get(ctx, target, localDest, true)
	} else {
		err = e.Store.Pop(ctx, target, localDest, true)
	}
	if err != nil {
		return false, blobstore.Escalate(err)
	}

	if usePlaceholder {
		switch {
		case !retain:
			// Every expected puller has now read target: the placeholder
			// has nothing left to track, so it is destroyed alongside the
			// regular file it described (spec.md §3, §4.2).
			if hasPlaceholder {
				if err := e.Placeholders.Release(ctx, target, true); err != nil {
					return false, err
				}
			}
		case hasPlaceholder:
			if err := e.Placeholders.MarkRead(ctx, target); err != nil {
				return false, err
			}
		default:
			if err := e.Placeholders.Update(ctx, target, ""); err != nil {
				return false, err
			}
		}
	}

	if err := e.Locks.Release(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// Get downloads target to localDest without deleting it, recording the
// read against the placeholder if one already exists.
func (e *Engine) Get(ctx context.Context, target, localDest string, usePlaceholder, blocking bool) (bool, error) {
	ok, err := e.Locks.Acquire(ctx, target, lock.ModeRead, blocking)
	if err != nil || !ok {
		return false, err
	}
	if err := e.Store.Get(ctx, target, localDest, true); err != nil {
		return false, blobstore.Escalate(err)
	}
	if usePlaceholder {
		if has, err := e.Placeholders.Has(ctx, target); err != nil {
			return false, err
		} else if has {
			if err := e.Placeholders.MarkRead(ctx, target); err != nil {
				return false, err
			}
		}
	}
	if err := e.Locks.Release(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes target from the store under a read lock, marking the
// placeholder read if one exists.
func (e *Engine) Delete(ctx context.Context, target string, blocking bool) (bool, error) {
	ok, err := e.Locks.Acquire(ctx, target, lock.ModeRead, blocking)
	if err != nil || !ok {
		return false, err
	}
	if err := e.Store.Delete(ctx, target); err != nil {
		return false, blobstore.Escalate(err)
	}
	if err := e.Placeholders.MarkRead(ctx, target); err != nil && !blobstore.IsNotFound(err) {
		return false, err
	}
	if err := e.Locks.Release(ctx, target); err != nil {
		return false, err
	}
	return true, nil
}

// RepairAction reports which local side effects the caller must apply
// after Repair, since Repair itself only touches the store.
type RepairAction struct {
	// DeleteLocal is true when the local copy of the lock's target should
	// be removed: a reader crashed mid-pull and a local copy exists, whose
	// content is indeterminate.
	DeleteLocal bool
}

// Repair resolves one corrupted lock (spec.md §4.3, "repair"): a
// write-mode lock means a pusher crashed, so any partial remote copy and
// its placeholder are cleared to let the push be retried; a read-mode
// lock means a puller crashed, so the placeholder is cleared only if the
// remote copy is already gone (meaning the pull had completed and the
// puller crashed after deleting remotely but before finishing locally).
// localExists tells Repair whether the caller already holds a local copy
// of the target.
func (e *Engine) Repair(ctx context.Context, info lock.Info, localExists bool) (RepairAction, error) {
	var action RepairAction
	switch info.Mode {
	case lock.ModeWrite:
		if !localExists {
			e.logger.Errorf("repairing write lock for %s: no local file to resend", info.Target)
		}
		remoteExists, err := e.Exists(ctx, info.Target)
		if err != nil {
			return action, err
		}
		if remoteExists {
			if err := e.Store.Delete(ctx, info.Target); err != nil && !blobstore.IsNotFound(err) {
				return action, blobstore.Escalate(err)
			}
		}
		if err := e.Placeholders.Release(ctx, info.Target, true); err != nil {
			return action, err
		}
	case lock.ModeRead:
		if localExists {
			action.DeleteLocal = true
		}
		remoteExists, err := e.Exists(ctx, info.Target)
		if err != nil {
			return action, err
		}
		if !remoteExists {
			if err := e.Placeholders.Release(ctx, info.Target, true); err != nil {
				return action, err
			}
		}
	default:
		remoteExists, err := e.Exists(ctx, info.Target)
		if err != nil {
			return action, err
		}
		if remoteExists {
			if err := e.Store.Delete(ctx, info.Target); err != nil && !blobstore.IsNotFound(err) {
				return action, blobstore.Escalate(err)
			}
		}
		if err := e.Placeholders.Release(ctx, info.Target, true); err != nil {
			return action, err
		}
	}
	if err := e.Locks.Release(ctx, info.Target); err != nil {
		return action, err
	}
	return action, nil
}

// ListReady returns the regular files under dir that are neither marker
// blobs nor currently locked, i.e. files available to be pulled
// (spec.md §4.4, "listReady").
func (e *Engine) ListReady(ctx context.Context, dir string, recursive bool) ([]string, error) {
	entries, err := e.Store.List(ctx, dir, recursive, false)
	if err != nil {
		return nil, blobstore.Escalate(err)
	}
	present := make(map[string]bool, len(entries))
	for _, ent := range entries {
		present[ent.Name] = true
	}
	var ready []string
	for _, ent := range entries {
		if e.Codec.IsLock(ent.Name) || e.Codec.IsPlaceholder(ent.Name) {
			continue
		}
		if !present[e.Codec.LockName(ent.Name)] {
			ready = append(ready, ent.Name)
		}
	}
	return ready, nil
}

// ListCorrupted delegates to the lock manager's corrupted-lock sweep
// (spec.md §4.3); it is exposed here so callers can drive the full
// push/pop/get/delete/repair protocol through a single Engine value.
func (e *Engine) ListCorrupted(ctx context.Context, dir string, recursive bool) ([]lock.Info, error) {
	return e.Locks.ListCorrupted(ctx, dir, recursive)
}

// ListTransfered returns the files that have completed a transfer
// end-to-end (endToEnd == true: every file with a placeholder), or, when
// endToEnd is false, every entry under dir partitioned into regular
// files, placeholder targets and lock targets (spec.md §4.4,
// "listTransfered").
func (e *Engine) ListTransfered(ctx context.Context, dir string, endToEnd, recursive bool) ([]string, error) {
	entries, err := e.Store.List(ctx, dir, recursive, false)
	if err != nil {
		return nil, blobstore.Escalate(err)
	}
	var placeholders, others []string
	for _, ent := range entries {
		if e.Codec.IsPlaceholder(ent.Name) {
			placeholders = append(placeholders, e.Codec.FromPlaceholder(ent.Name))
		} else {
			others = append(others, ent.Name)
		}
	}
	if endToEnd {
		return placeholders, nil
	}
	var locks, rest []string
	for _, o := range others {
		if e.Codec.IsLock(o) {
			locks = append(locks, e.Codec.FromLock(o))
		} else {
			rest = append(rest, o)
		}
	}
	result := make([]string, 0, len(rest)+len(placeholders)+len(locks))
	result = append(result, rest...)
	result = append(result, placeholders...)
	result = append(result, locks...)
	return result, nil
}
