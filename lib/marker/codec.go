// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package marker maps regular filenames to and from the placeholder, lock
// and message names used on the relay, and back.
package marker

import (
	"path"
	"strings"
)

// HashFunc derives the subextension inserted into a message name. It must
// never return a string containing '.'.
type HashFunc func(localFile string) string

// Codec encodes and decodes the three marker kinds relative to a regular
// filename. The zero value has empty prefixes and suffixes; Default returns
// the codec with the on-relay defaults.
type Codec struct {
	PlaceholderPrefix, PlaceholderSuffix string
	LockPrefix, LockSuffix               string
	MessagePrefix, MessageSuffix         string
	MessageHash                          HashFunc
}

// Default returns the codec with the on-relay layout defaults from
// spec.md §6: placeholders ".name.placeholder", locks ".name.lock",
// messages ".name.message".
func Default() Codec {
	return Codec{
		PlaceholderPrefix: ".",
		PlaceholderSuffix: ".placeholder",
		LockPrefix:        ".",
		LockSuffix:        ".lock",
		MessagePrefix:     ".",
		MessageSuffix:     ".message",
	}
}

func withBasename(p string, fn func(string) (string, error)) (string, error) {
	dir, base := path.Split(p)
	name, err := fn(base)
	if err != nil {
		return "", err
	}
	return path.Join(dir, name), nil
}

func (c Codec) placeholder(base string) string {
	return c.PlaceholderPrefix + base + c.PlaceholderSuffix
}

func (c Codec) lock(base string) string {
	return c.LockPrefix + base + c.LockSuffix
}

func (c Codec) isPlaceholder(base string) bool {
	return strings.HasPrefix(base, c.PlaceholderPrefix) && strings.HasSuffix(base, c.PlaceholderSuffix) &&
		len(base) >= len(c.PlaceholderPrefix)+len(c.PlaceholderSuffix)
}

func (c Codec) isLock(base string) bool {
	return strings.HasPrefix(base, c.LockPrefix) && strings.HasSuffix(base, c.LockSuffix) &&
		len(base) >= len(c.LockPrefix)+len(c.LockSuffix)
}

func (c Codec) isMessage(base string) bool {
	return strings.HasPrefix(base, c.MessagePrefix) && strings.HasSuffix(base, c.MessageSuffix) &&
		len(base) >= len(c.MessagePrefix)+len(c.MessageSuffix)
}

func (c Codec) fromPlaceholder(base string) string {
	end := len(base) - len(c.PlaceholderSuffix)
	return base[len(c.PlaceholderPrefix):end]
}

func (c Codec) fromLock(base string) string {
	end := len(base) - len(c.LockSuffix)
	return base[len(c.LockPrefix):end]
}

func (c Codec) fromMessage(base string) string {
	end := len(base) - len(c.MessageSuffix)
	name := base[len(c.MessagePrefix):end]
	if c.MessageHash != nil {
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[:i]
		}
	}
	return name
}

// PlaceholderName returns the placeholder name for regular file F. It is
// idempotent: PlaceholderName(PlaceholderName(F)) == PlaceholderName(F).
func (c Codec) PlaceholderName(f string) string {
	name, _ := withBasename(f, func(base string) (string, error) {
		if c.isPlaceholder(base) {
			return base, nil
		}
		return c.placeholder(base), nil
	})
	return name
}

// LockName returns the lock name for regular file F, idempotently.
func (c Codec) LockName(f string) string {
	name, _ := withBasename(f, func(base string) (string, error) {
		if c.isLock(base) {
			return base, nil
		}
		return c.lock(base), nil
	})
	return name
}

// MessageName returns the message name for regular file F. When MessageHash
// is configured, the returned name embeds the hash as a dotted subextension;
// a hash containing '.' is rejected with ErrInvalidHash.
func (c Codec) MessageName(f string) (string, error) {
	return withBasename(f, func(base string) (string, error) {
		if c.isMessage(base) {
			return base, nil
		}
		if c.MessageHash == nil {
			return c.MessagePrefix + base + c.MessageSuffix, nil
		}
		hash := c.MessageHash(f)
		if strings.Contains(hash, ".") {
			return "", ErrInvalidHash
		}
		return c.MessagePrefix + base + "." + hash + c.MessageSuffix, nil
	})
}

// IsPlaceholder reports whether path p (only its final component is
// inspected) is a placeholder name.
func (c Codec) IsPlaceholder(p string) bool { return c.isPlaceholder(path.Base(p)) }

// IsLock reports whether path p is a lock name.
func (c Codec) IsLock(p string) bool { return c.isLock(path.Base(p)) }

// IsMessage reports whether path p is a message name.
func (c Codec) IsMessage(p string) bool { return c.isMessage(path.Base(p)) }

// IsSpecial reports whether p is any marker kind.
func (c Codec) IsSpecial(p string) bool {
	base := path.Base(p)
	return c.isPlaceholder(base) || c.isLock(base) || c.isMessage(base)
}

// FromPlaceholder decodes a placeholder path back to its regular file path.
func (c Codec) FromPlaceholder(p string) string {
	name, _ := withBasename(p, func(base string) (string, error) { return c.fromPlaceholder(base), nil })
	return name
}

// FromLock decodes a lock path back to its regular file path.
func (c Codec) FromLock(p string) string {
	name, _ := withBasename(p, func(base string) (string, error) { return c.fromLock(base), nil })
	return name
}

// FromMessage decodes a message path back to its regular file path.
func (c Codec) FromMessage(p string) string {
	name, _ := withBasename(p, func(base string) (string, error) { return c.fromMessage(base), nil })
	return name
}

// FromSpecial decodes whichever marker kind p is. It returns
// ErrNotSpecial if p is not a marker name of any kind.
func (c Codec) FromSpecial(p string) (string, error) {
	base := path.Base(p)
	switch {
	case c.isLock(base):
		return c.FromLock(p), nil
	case c.isPlaceholder(base):
		return c.FromPlaceholder(p), nil
	case c.isMessage(base):
		return c.FromMessage(p), nil
	default:
		return "", ErrNotSpecial
	}
}
