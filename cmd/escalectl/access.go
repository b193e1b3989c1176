// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/francoislaurent/escale-go/lib/access"
	"github.com/francoislaurent/escale-go/lib/config"
)

// AccessCmd queries or sets a file's recorded readable/writable modifiers
// (spec.md §6, "access [rw±±] PATH [--repository R]").
type AccessCmd struct {
	Args       []string `arg:"" help:"[MODIFIERS] PATH, e.g. 'r+w-' PATH to set, or PATH alone to query."`
	Repository string   `help:"Repository PATH belongs to (default: the configuration's only repository)."`
}

func (a *AccessCmd) Run(cli *CLI) error {
	var modifiers, path string
	switch len(a.Args) {
	case 1:
		path = a.Args[0]
	case 2:
		modifiers, path = a.Args[0], a.Args[1]
	default:
		return errors.New("access: expected '[MODIFIERS] PATH'")
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return errors.Wrap(err, "loading configuration")
	}
	name, repo, err := resolveRepositoryForPath(cfg, a.Repository, path)
	if err != nil {
		return err
	}

	rel, err := relativeToRepository(repo.Path, path)
	if err != nil {
		return err
	}

	table, err := access.OpenTable(repo.Path + ".access.db")
	if err != nil {
		return errors.Wrapf(err, "opening access table for %q", name)
	}
	defer table.Close()

	if modifiers == "" {
		read, err := table.Readability(rel)
		if err != nil {
			return err
		}
		write, err := table.Writability(rel)
		if err != nil {
			return err
		}
		fmt.Printf("r%c w%c\n", read.Symbol(), write.Symbol())
		return nil
	}

	// spec.md §4.6 requires F to exist locally before its modifiers can be
	// set; querying (no modifiers) has no such requirement.
	if _, err := os.Stat(filepath.Join(repo.Path, rel)); err != nil {
		return errors.Wrapf(err, "setting access modifiers for %q", path)
	}

	readMod, writeMod, err := parseModifiers(modifiers)
	if err != nil {
		return err
	}
	if readMod != nil {
		if err := table.SetReadability(rel, *readMod); err != nil {
			return err
		}
	}
	if writeMod != nil {
		if err := table.SetWritability(rel, *writeMod); err != nil {
			return err
		}
	}
	return nil
}

// parseModifiers reads original_source's ctl.py modifier syntax: a run of
// "r" or "w" each optionally followed by one of '+'/'-'/'?' (default '+'
// when the symbol is omitted or not one of those three).
func parseModifiers(s string) (read, write *access.Ability, err error) {
	i := 0
	for i < len(s) {
		letter := s[i]
		i++
		symbol := byte('+')
		if i < len(s) {
			switch s[i] {
			case '+', '-', '?':
				symbol = s[i]
				i++
			}
		}
		ability, perr := access.ParseAbility(symbol)
		if perr != nil {
			return nil, nil, perr
		}
		switch letter {
		case 'r':
			read = &ability
		case 'w':
			write = &ability
		default:
			return nil, nil, fmt.Errorf("access: unrecognized modifier letter %q", letter)
		}
	}
	return read, write, nil
}

// resolveRepositoryForPath picks the named repository, or, if name is
// empty, the configuration's only repository (matching ctl.py's access()
// behaviour of refusing to guess among several).
func resolveRepositoryForPath(cfg *config.Config, name, path string) (string, config.Repository, error) {
	if name != "" {
		repo, err := cfg.Repository(name)
		return name, repo, err
	}
	if len(cfg.Repositories) != 1 {
		return "", config.Repository{}, errors.New("access: several repositories defined; specify --repository")
	}
	for n, repo := range cfg.Repositories {
		return n, repo, nil
	}
	return "", config.Repository{}, errors.New("access: no repository configured")
}

func relativeToRepository(root, path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		abs = filepath.Join(wd, path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", errors.Wrapf(err, "path %q is not under repository root %q", path, root)
	}
	return rel, nil
}
