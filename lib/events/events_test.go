// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package events_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/francoislaurent/escale-go/lib/events"
)

const pollTimeout = 100 * time.Millisecond

func TestSubscriptionMaskFiltersEvents(t *testing.T) {
	bus := events.NewLogger()

	repairs := bus.Subscribe(events.LockRepaired)
	defer bus.Unsubscribe(repairs)
	pushes := bus.Subscribe(events.FilePushed)
	defer bus.Unsubscribe(pushes)

	bus.Log(events.FilePushed, "repo-a/photo.jpg")

	if _, err := repairs.Poll(pollTimeout); err != events.ErrTimeout {
		t.Fatalf("subscription masked to LockRepaired saw a FilePushed event (err=%v)", err)
	}
	ev, err := pushes.Poll(pollTimeout)
	if err != nil {
		t.Fatalf("subscription masked to FilePushed missed it: %v", err)
	}
	if ev.Type != events.FilePushed || ev.Data.(string) != "repo-a/photo.jpg" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSubscribeMissesEventsLoggedBeforeIt(t *testing.T) {
	bus := events.NewLogger()
	bus.Log(events.TickStarted, "repo-a")

	sub := bus.Subscribe(events.AllEvents)
	defer bus.Unsubscribe(sub)

	if _, err := sub.Poll(pollTimeout); err != events.ErrTimeout {
		t.Fatalf("subscriber should not see events logged before it subscribed, err=%v", err)
	}
}

func TestEventIDsAreMonotonic(t *testing.T) {
	bus := events.NewLogger()
	sub := bus.Subscribe(events.AllEvents)
	defer bus.Unsubscribe(sub)

	bus.Log(events.FilePushed, "a.txt")
	bus.Log(events.FilePopped, "a.txt")

	first, err := sub.Poll(pollTimeout)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sub.Poll(pollTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected increasing IDs, got %d then %d", first.ID, second.ID)
	}
}

func TestUnsubscribeClosesPendingPolls(t *testing.T) {
	bus := events.NewLogger()
	sub := bus.Subscribe(events.AllEvents)

	bus.Log(events.TickStarted, "repo-a")
	if _, err := sub.Poll(pollTimeout); err != nil {
		t.Fatalf("expected the event logged before Unsubscribe to still be delivered: %v", err)
	}

	bus.Unsubscribe(sub)
	bus.Log(events.TickStarted, "repo-a")

	if _, err := sub.Poll(pollTimeout); err != events.ErrClosed {
		t.Fatalf("expected ErrClosed after Unsubscribe, got %v", err)
	}
}

func TestLogNeverBlocksOnAFullSubscriber(t *testing.T) {
	bus := events.NewLogger()
	sub := bus.Subscribe(events.AllEvents)
	defer bus.Unsubscribe(sub)

	start := time.Now()
	for i := 0; i < events.BufferSize*3; i++ {
		bus.Log(events.FilePushed, fmt.Sprintf("file-%d.txt", i))
	}
	if elapsed := time.Since(start); elapsed > pollTimeout {
		t.Fatalf("Log blocked for %s once a subscriber's buffer filled up", elapsed)
	}

	// Events logged after the buffer filled were dropped, not queued:
	// draining what's left should yield at most BufferSize events before
	// the channel is empty.
	drained := 0
	for {
		if _, err := sub.Poll(10 * time.Millisecond); err != nil {
			break
		}
		drained++
	}
	if drained > events.BufferSize {
		t.Fatalf("drained %d events, want at most BufferSize=%d", drained, events.BufferSize)
	}
}

func TestEventTypeStringNamesKnownKinds(t *testing.T) {
	cases := map[events.EventType]string{
		events.TickStarted:   "tick-started",
		events.FilePushed:    "file-pushed",
		events.LockRepaired:  "lock-repaired",
		events.AccessDenied:  "access-denied",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", typ, got, want)
		}
	}
}

func TestBufferedSubscriptionReplaysSinceID(t *testing.T) {
	bus := events.NewLogger()
	sub := bus.Subscribe(events.AllEvents)
	defer bus.Unsubscribe(sub)

	buffered := events.NewBufferedSubscription(sub, 8)

	const total = 5
	for i := 0; i < total; i++ {
		bus.Log(events.FilePushed, fmt.Sprintf("repo-a/file-%d.txt", i))
	}

	var seen []events.Event
	deadline := time.Now().Add(time.Second)
	for len(seen) < total && time.Now().Before(deadline) {
		seen = buffered.Since(0, nil)
		if len(seen) < total {
			time.Sleep(5 * time.Millisecond)
		}
	}
	if len(seen) != total {
		t.Fatalf("Since(0, ...) returned %d events, want %d", len(seen), total)
	}
	for i, ev := range seen {
		if i > 0 && ev.ID <= seen[i-1].ID {
			t.Fatalf("Since results not in ascending ID order: %+v", seen)
		}
	}

	tail := buffered.Since(seen[2].ID, nil)
	if len(tail) != total-3 {
		t.Fatalf("Since(%d, ...) returned %d events, want %d", seen[2].ID, len(tail), total-3)
	}
}
