// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lock implements the distributed mutual-exclusion protocol of
// spec.md §4.3: advisory locks represented as marker blobs, with
// timeout-based recovery of locks left behind by a crashed client.
package lock

import (
	"fmt"
	"strings"
)

// Mode is the access mode a lock was acquired for.
type Mode string

const (
	// ModeWrite is held by a pusher for the duration of a push.
	ModeWrite Mode = "w"
	// ModeRead is held by a puller for the duration of a pop/get/delete.
	ModeRead Mode = "r"
)

// Info is the parsed content of a lock blob (spec.md §3 "Lock", §6
// "Lock body"). Target is reconstructed by the caller from the blob path,
// not stored in the body, matching original_source's
// "LockInfo.target is always set to F by the caller".
type Info struct {
	Owner  string
	Mode   Mode
	Target string
}

// IsZero reports whether this is the zero-value Info returned when a lock
// blob could not be parsed (spec.md §9, "lock body parse errors").
func (i Info) IsZero() bool {
	return i.Owner == "" && i.Mode == ""
}

// Serialize renders Info to the textual form written to the lock blob:
// one "key=value" pair per line, owner first.
func Serialize(i Info) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "owner=%s\n", i.Owner)
	fmt.Fprintf(&b, "mode=%s\n", i.Mode)
	return []byte(b.String())
}

// Parse decodes a lock blob body written by Serialize. A malformed body
// yields a zero-value Info and a non-nil error; callers that want the
// "treat unparseable locks as corrupted" policy of spec.md §9 should
// discard the error and use the zero value, as Manager.Inspect does.
func Parse(body []byte) (Info, error) {
	var i Info
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return Info{}, fmt.Errorf("lock: malformed line %q", line)
		}
		switch key {
		case "owner":
			i.Owner = value
		case "mode":
			i.Mode = Mode(value)
		}
	}
	return i, nil
}
