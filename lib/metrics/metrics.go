// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package metrics exposes the Manager loop's tick and transfer outcomes
// as Prometheus counters, the way cmd/infra/stupgrades/metrics.go exposes
// promauto counters for its own upgrade-check subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ticks counts Manager loop iterations, labeled by repository.
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escale",
		Subsystem: "manager",
		Name:      "ticks_total",
	}, []string{"repository"})

	// Transfers counts completed relay operations, labeled by repository,
	// operation (push/pop/get/delete) and result (ok/error).
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escale",
		Subsystem: "relay",
		Name:      "transfers_total",
	}, []string{"repository", "operation", "result"})

	// LockRepairs counts corrupted locks reclaimed by the manager loop,
	// labeled by repository and the lock's mode at the time of repair.
	LockRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escale",
		Subsystem: "lock",
		Name:      "repairs_total",
	}, []string{"repository", "mode"})

	// PendingFiles reports the size of the last listReady result, labeled
	// by repository.
	PendingFiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "escale",
		Subsystem: "relay",
		Name:      "pending_files",
	}, []string{"repository"})
)
