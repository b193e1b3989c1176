// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package blobstore defines the passive relay transport contract consumed
// by lib/relay, lib/lock and lib/placeholder (spec.md §4.2), and ships two
// implementations: an in-memory store for tests and a local-filesystem
// store usable as a relay of last resort (and as the on-disk shape a real
// FTP/SFTP/WebDAV transport, out of scope per spec.md §1, would need to
// match).
package blobstore

import (
	"context"
	"time"
)

// Entry is one item returned by List, optionally carrying its modification
// time when withStats is requested.
type Entry struct {
	Name  string
	MTime time.Time // zero if stats were not requested
}

// Store is the blob store contract consumed by the relay engine. All paths
// are relative to the store's own root; the store never normalizes or
// case-folds names (spec.md §6).
type Store interface {
	// List lists the names directly in dir (recursive=false) or the full
	// subtree (recursive=true). withStats requests MTime population.
	List(ctx context.Context, dir string, recursive, withStats bool) ([]Entry, error)

	// Push uploads the content at localPath to remotePath, creating or
	// overwriting it.
	Push(ctx context.Context, localPath, remotePath string) error

	// Get downloads remotePath to localPath without deleting the remote
	// copy. makedirs creates local parent directories as needed.
	Get(ctx context.Context, remotePath, localPath string, makedirs bool) error

	// Pop is Get followed by Delete, as a single logical step.
	Pop(ctx context.Context, remotePath, localPath string, makedirs bool) error

	// Delete removes remotePath. It returns ErrNotFound if the blob is
	// already absent.
	Delete(ctx context.Context, remotePath string) error

	// Size returns the size in bytes of remotePath, or (0, ErrNotFound) if
	// it does not exist.
	Size(ctx context.Context, remotePath string) (int64, error)

	// Purge recursively deletes dir and everything under it. Used by tests
	// and by the backup/restore CLI verbs.
	Purge(ctx context.Context, dir string) error
}

// SpaceReporter is optionally implemented by a Store to answer
// storageSpace() queries (spec.md §12, carried over from
// AbstractRelay.storageSpace in original_source). Absence of this
// interface means "unknown", exactly like the Python default returning
// (None, None).
type SpaceReporter interface {
	StorageSpace(ctx context.Context) (available, quota int64, err error)
}
