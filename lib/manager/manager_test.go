package manager

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/francoislaurent/escale-go/lib/access"
	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/lock"
	"github.com/francoislaurent/escale-go/lib/marker"
	"github.com/francoislaurent/escale-go/lib/placeholder"
	"github.com/francoislaurent/escale-go/lib/relay"
)

// emfileStore wraps a Store and fails every Push with the EMFILE condition
// lib/blobstore.Escalate turns into an UnrecoverableError, simulating a
// worker that has run out of file descriptors mid-tick.
type emfileStore struct {
	blobstore.Store
}

func (s *emfileStore) Push(ctx context.Context, localPath, remotePath string) error {
	return blobstore.Wrap(syscall.EMFILE, "push", remotePath)
}

func newTestManager(t *testing.T, relayDir, localDir, client string) *Manager {
	t.Helper()
	store := blobstore.NewFSStore(relayDir)
	codec := marker.Default()
	locks := lock.New(store, codec, client, time.Hour)
	ph := placeholder.New(store, codec, client)
	engine := relay.New(store, codec, locks, ph, 1)

	ctl, err := access.NewController("repo", localDir, access.ModeShared, nil)
	if err != nil {
		t.Fatal(err)
	}
	return New("repo", ctl, engine, nil)
}

func TestTickPushesThenAnotherTickPulls(t *testing.T) {
	ctx := context.Background()
	relayDir := t.TempDir()
	dirA := t.TempDir()
	dirB := t.TempDir()

	mgrA := newTestManager(t, relayDir, dirA, "client-a")
	mgrB := newTestManager(t, relayDir, dirB, "client-b")

	if err := os.WriteFile(filepath.Join(dirA, "photo.jpg"), []byte("binary-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := mgrA.Tick(ctx); err != nil {
		t.Fatalf("push tick: %v", err)
	}

	if err := mgrB.Tick(ctx); err != nil {
		t.Fatalf("pull tick: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dirB, "photo.jpg"))
	if err != nil {
		t.Fatalf("expected photo.jpg pulled into B's repository: %v", err)
	}
	if string(data) != "binary-data" {
		t.Fatalf("pulled content = %q, want %q", data, "binary-data")
	}
}

func TestTickRepairsOwnCrashedWriteLock(t *testing.T) {
	ctx := context.Background()
	relayDir := t.TempDir()
	dirA := t.TempDir()

	mgrA := newTestManager(t, relayDir, dirA, "client-a")

	target := "photo.jpg"
	local := filepath.Join(dirA, target)
	if err := os.WriteFile(local, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Simulate a crash mid-push: the write lock exists, owned by this same
	// client, but the push itself never completed.
	if ok, err := mgrA.Engine.Locks.Acquire(ctx, target, lock.ModeWrite, false); err != nil || !ok {
		t.Fatalf("Acquire: %v, %v", ok, err)
	}

	if err := mgrA.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// The repair should have released the lock, so the same client can now
	// push the file normally on a later tick.
	if ok, err := mgrA.Engine.Locks.Acquire(ctx, target, lock.ModeWrite, false); err != nil || !ok {
		t.Fatalf("lock should be free after repair, Acquire = %v, %v", ok, err)
	}
	if err := mgrA.Engine.Locks.Release(ctx, target); err != nil {
		t.Fatal(err)
	}
}

func TestRunStopsOnUnrecoverableError(t *testing.T) {
	ctx := context.Background()
	localDir := t.TempDir()

	store := &emfileStore{Store: blobstore.NewMemStore(nil)}
	codec := marker.Default()
	locks := lock.New(store, codec, "client-a", time.Hour)
	ph := placeholder.New(store, codec, "client-a")
	engine := relay.New(store, codec, locks, ph, 1)

	ctl, err := access.NewController("repo", localDir, access.ModeShared, nil)
	if err != nil {
		t.Fatal(err)
	}
	mgr := New("repo", ctl, engine, nil)
	mgr.TickInterval = time.Millisecond

	if err := os.WriteFile(filepath.Join(localDir, "photo.jpg"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	err = mgr.Run(ctx)
	if err == nil {
		t.Fatal("expected Run to return an error after exhausting file descriptors")
	}
	if !blobstore.IsUnrecoverableError(err) {
		t.Fatalf("Run returned %v, want an UnrecoverableError", err)
	}
}
