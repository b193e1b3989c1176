// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package placeholder maintains the marker blobs that record a file's
// transfer history on the relay (spec.md §4.2): whether it has ever been
// pushed, and which pullers have already read it, so a pull-gated delete
// can wait for every expected puller before destroying the remote copy.
package placeholder

import (
	"context"
	"os"
	"strings"

	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/escalelog"
	"github.com/francoislaurent/escale-go/lib/marker"
)

// Manager reads and writes placeholder blobs for a single repository.
//
// A placeholder body is a newline-separated list of lines: the first line
// is free-form metadata supplied by the writer (typically the pushed
// file's modification time, opaque to Manager), and each subsequent line
// records one puller, by client identifier, that has read the file since
// it was last (re)pushed. PendingReads counts those trailing lines.
type Manager struct {
	Store  blobstore.Store
	Codec  marker.Codec
	Client string

	logger *escalelog.Logger
}

// New constructs a Manager for one repository's placeholder blobs.
func New(store blobstore.Store, codec marker.Codec, client string) *Manager {
	return &Manager{Store: store, Codec: codec, Client: client, logger: escalelog.For("placeholder")}
}

// Has reports whether a placeholder blob exists for target.
func (m *Manager) Has(ctx context.Context, target string) (bool, error) {
	name := m.Codec.PlaceholderName(target)
	if _, err := m.Store.Size(ctx, name); err != nil {
		if blobstore.IsNotFound(err) {
			return false, nil
		}
		return false, blobstore.Escalate(err)
	}
	return true, nil
}

func (m *Manager) write(ctx context.Context, name string, body string) error {
	tmp, err := os.CreateTemp("", "escale-placeholder-*")
	if err != nil {
		return blobstore.Escalate(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return blobstore.Escalate(err)
	}
	if err := tmp.Close(); err != nil {
		return blobstore.Escalate(err)
	}
	return blobstore.Escalate(m.Store.Push(ctx, tmpName, name))
}

func (m *Manager) read(ctx context.Context, name string) (string, error) {
	tmp, err := os.CreateTemp("", "escale-placeholder-*")
	if err != nil {
		return "", blobstore.Escalate(err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)
	if err := m.Store.Get(ctx, name, tmpName, false); err != nil {
		return "", blobstore.Escalate(err)
	}
	data, err := os.ReadFile(tmpName)
	if err != nil {
		return "", blobstore.Escalate(err)
	}
	return string(data), nil
}

// Update (re)writes the placeholder for target, resetting its read count
// to zero. Called after a fresh push (spec.md §4.2: "updatePlaceholder
// ... when the corresponding file is pushed"). meta is opaque caller
// metadata, conventionally the pushed file's modification time; it may be
// empty.
func (m *Manager) Update(ctx context.Context, target, meta string) error {
	return m.write(ctx, m.Codec.PlaceholderName(target), meta+"\n")
}

// Release deletes the placeholder for target. If handleMissing is true, a
// missing placeholder is logged at debug level and treated as success,
// matching the "repair" path that clears placeholders unconditionally; if
// false, a missing placeholder is logged as a warning and returned as an
// error, matching the push/pop path where the placeholder is expected to
// exist.
func (m *Manager) Release(ctx context.Context, target string, handleMissing bool) error {
	name := m.Codec.PlaceholderName(target)
	if err := m.Store.Delete(ctx, name); err != nil {
		if blobstore.IsNotFound(err) {
			if handleMissing {
				m.logger.Debugf("no placeholder to release for %s", target)
				return nil
			}
			m.logger.Warnf("cannot find placeholder for file: %s", target)
			return err
		}
		return blobstore.Escalate(err)
	}
	return nil
}

// PendingReads returns the number of pullers recorded as having already
// read target, i.e. the number of lines in the placeholder body beyond
// its header line. It is the puller-count-gating signal: a caller expecting
// N pullers should retain the remote copy while PendingReads < N-1.
func (m *Manager) PendingReads(ctx context.Context, target string) (int, error) {
	body, err := m.read(ctx, m.Codec.PlaceholderName(target))
	if err != nil {
		return 0, err
	}
	lines := strings.Split(body, "\n")
	// Split on a body ending in "\n" yields a trailing empty element;
	// drop it so it isn't counted as a line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return 0, nil
	}
	return len(lines) - 1, nil
}

// MarkRead appends this Manager's Client to the placeholder for target,
// recording that this puller has consumed the file (spec.md §4.2,
// "markAsRead"). It requires the placeholder to already exist.
func (m *Manager) MarkRead(ctx context.Context, target string) error {
	name := m.Codec.PlaceholderName(target)
	body, err := m.read(ctx, name)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	body += m.Client + "\n"
	return m.write(ctx, name, body)
}
