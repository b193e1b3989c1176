// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package access implements the local access controller of spec.md §5:
// a persistent readable/writable table per file, plus the modes
// (upload, download, shared, conservative) that decide how that table
// gates transfers.
package access

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Ability is a tri-state permission: Unknown defers to a mode's default,
// Allowed and Denied are explicit decisions recorded in the Table.
type Ability int

const (
	Unknown Ability = iota
	Allowed
	Denied
)

const (
	symbolUnknown = ' '
	symbolAllowed = '+'
	symbolDenied  = '-'
)

func (a Ability) symbol() byte {
	switch a {
	case Allowed:
		return symbolAllowed
	case Denied:
		return symbolDenied
	default:
		return symbolUnknown
	}
}

// Symbol renders a as one of the '+'/'-'/' ' characters used in the
// access store's on-disk records and the CLI's "rw" modifier syntax.
func (a Ability) Symbol() byte { return a.symbol() }

// ParseAbility is the inverse of Symbol, accepting the CLI's '+'/'-'/'?'
// modifier characters ('?' meaning "leave unset", i.e. Unknown).
func ParseAbility(b byte) (Ability, error) {
	switch b {
	case symbolAllowed:
		return Allowed, nil
	case symbolDenied:
		return Denied, nil
	case '?', symbolUnknown:
		return Unknown, nil
	default:
		return Unknown, fmt.Errorf("access: unrecognized ability modifier %q", b)
	}
}

func abilityOf(b byte) Ability {
	switch b {
	case symbolAllowed:
		return Allowed
	case symbolDenied:
		return Denied
	default:
		return Unknown
	}
}

// Table persists two abilities per resource (readable, writable) as a
// two-byte record, the Go equivalent of original_source's dbm-backed
// AccessAttributes table, using goleveldb the way
// internal/db/leveldb.go does for syncthing's own index.
type Table struct {
	db *leveldb.DB
}

// OpenTable opens (or creates) the persistent table at path.
func OpenTable(path string) (*Table, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Table{db: db}, nil
}

// Close releases the underlying database handle.
func (t *Table) Close() error { return t.db.Close() }

var recordUnknown = [2]byte{symbolUnknown, symbolUnknown}

func (t *Table) record(resource string) ([2]byte, error) {
	value, err := t.db.Get([]byte(resource), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return recordUnknown, nil
		}
		return recordUnknown, err
	}
	if len(value) != 2 {
		return recordUnknown, nil
	}
	return [2]byte{value[0], value[1]}, nil
}

func (t *Table) setRecord(resource string, rec [2]byte) error {
	if rec == recordUnknown {
		if err := t.db.Delete([]byte(resource), nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}
		return nil
	}
	return t.db.Put([]byte(resource), rec[:], nil)
}

// Readability returns the explicitly recorded readability of resource,
// Unknown if none has been set.
func (t *Table) Readability(resource string) (Ability, error) {
	rec, err := t.record(resource)
	if err != nil {
		return Unknown, err
	}
	return abilityOf(rec[0]), nil
}

// Writability returns the explicitly recorded writability of resource,
// Unknown if none has been set.
func (t *Table) Writability(resource string) (Ability, error) {
	rec, err := t.record(resource)
	if err != nil {
		return Unknown, err
	}
	return abilityOf(rec[1]), nil
}

// SetReadability records resource's readability explicitly.
func (t *Table) SetReadability(resource string, a Ability) error {
	rec, err := t.record(resource)
	if err != nil {
		return err
	}
	rec[0] = a.symbol()
	return t.setRecord(resource, rec)
}

// SetWritability records resource's writability explicitly.
func (t *Table) SetWritability(resource string, a Ability) error {
	rec, err := t.record(resource)
	if err != nil {
		return err
	}
	rec[1] = a.symbol()
	return t.setRecord(resource, rec)
}

// IsReadable reports whether resource may be uploaded: true unless it has
// been explicitly denied. If the readability is Unknown and explicit is
// non-nil, explicit is recorded as the resource's readability before
// returning, the Go analogue of AccessAttributes._ability's
// "make_explicit" parameter.
func (t *Table) IsReadable(resource string, explicit *Ability) (bool, error) {
	val, err := t.Readability(resource)
	if err != nil {
		return false, err
	}
	if val == Unknown && explicit != nil {
		val = *explicit
		if err := t.SetReadability(resource, val); err != nil {
			return false, err
		}
	}
	return val != Denied, nil
}

// IsWritable reports whether resource may be downloaded, with the same
// Unknown/explicit semantics as IsReadable.
func (t *Table) IsWritable(resource string, explicit *Ability) (bool, error) {
	val, err := t.Writability(resource)
	if err != nil {
		return false, err
	}
	if val == Unknown && explicit != nil {
		val = *explicit
		if err := t.SetWritability(resource, val); err != nil {
			return false, err
		}
	}
	return val != Denied, nil
}
