// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package automaxprocs right-sizes GOMAXPROCS to a container's CPU quota
// on import, so escalectl does not over-schedule the manager loop's
// per-repository goroutines when run under cgroup limits it cannot see
// through runtime.NumCPU alone.
package automaxprocs

import (
	"go.uber.org/automaxprocs/maxprocs"
)

func init() {
	maxprocs.Set()
}
