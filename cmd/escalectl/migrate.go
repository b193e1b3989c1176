// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/config"
)

// migrateRateLimit throttles the safe (non-fast) copy path to a modest
// steady rate, mirroring cmd/relaysrv's bandwidth-limiting use of a token
// bucket rather than copying as fast as the filesystem allows.
const migrateRateLimit = 20 // files per second

// MigrateCmd copies a repository's relay-side content to a new endpoint and
// updates the configuration to point at it (spec.md §6, "migrate
// DESTINATION [--repository R] [--fast]").
type MigrateCmd struct {
	Destination string `arg:"" help:"New relay address for the repository."`
	Repository  string `help:"Repository to migrate (default: the configuration's only repository)."`
	Fast        bool   `help:"Skip throttling the copy."`
}

func (m *MigrateCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	name, repo, err := resolveRepositoryForPath(cfg, m.Repository, "")
	if err != nil {
		return err
	}

	oldStore := blobstore.NewFSStore(strings.TrimPrefix(repo.Address, "file://"))
	newAddress := strings.TrimPrefix(m.Destination, "file://")
	newStore := blobstore.NewFSStore(newAddress)

	if err := copyTree(context.Background(), oldStore, newStore, true, m.Fast); err != nil {
		return errors.Wrap(err, "migrating relay content")
	}

	repo.Address = m.Destination
	cfg.Set(name, repo)
	if err := cfg.Save(cli.Config); err != nil {
		return errors.Wrap(err, "saving configuration")
	}
	return nil
}

// BackupCmd copies a repository's relay-side content into a local archive
// directory (spec.md §6, "backup ARCHIVE [--repository R] [--fast]").
type BackupCmd struct {
	Archive    string `arg:"" help:"Destination directory for the archived relay content."`
	Repository string `help:"Repository to back up (default: the configuration's only repository)."`
	Fast       bool   `help:"Skip throttling the copy."`
}

func (b *BackupCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	_, repo, err := resolveRepositoryForPath(cfg, b.Repository, "")
	if err != nil {
		return err
	}
	src := blobstore.NewFSStore(strings.TrimPrefix(repo.Address, "file://"))
	dst := blobstore.NewFSStore(b.Archive)
	return copyTree(context.Background(), src, dst, false, b.Fast)
}

// RestoreCmd copies an archive produced by BackupCmd back onto a
// repository's relay endpoint (spec.md §6, "restore ARCHIVE [--repository
// R] [--fast]").
type RestoreCmd struct {
	Archive    string `arg:"" help:"Source directory holding the archived relay content."`
	Repository string `help:"Repository to restore into (default: the configuration's only repository)."`
	Fast       bool   `help:"Skip throttling the copy."`
}

func (r *RestoreCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	_, repo, err := resolveRepositoryForPath(cfg, r.Repository, "")
	if err != nil {
		return err
	}
	src := blobstore.NewFSStore(r.Archive)
	dst := blobstore.NewFSStore(strings.TrimPrefix(repo.Address, "file://"))
	return copyTree(context.Background(), src, dst, false, r.Fast)
}

// copyTree copies every blob under src's root to dst. When move is set
// (migrate only; backup/restore never remove their source), the source
// blob is deleted once the whole tree has been copied; fast skips the
// token-bucket throttle that otherwise paces the copy (spec.md §6,
// "--fast").
func copyTree(ctx context.Context, src, dst blobstore.Store, move, fast bool) error {
	entries, err := src.List(ctx, "", true, false)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if !fast {
		limiter = rate.NewLimiter(rate.Limit(migrateRateLimit), 1)
	}

	tmp, err := os.MkdirTemp("", "escalectl-migrate-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	for _, entry := range entries {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		local := filepath.Join(tmp, filepath.FromSlash(entry.Name))
		if err := src.Get(ctx, entry.Name, local, true); err != nil {
			return errors.Wrapf(err, "reading %s", entry.Name)
		}
		if err := dst.Push(ctx, local, entry.Name); err != nil {
			return errors.Wrapf(err, "writing %s", entry.Name)
		}
	}

	if move {
		if err := src.Purge(ctx, ""); err != nil {
			return errors.Wrap(err, "clearing source after migration")
		}
	}
	return nil
}
