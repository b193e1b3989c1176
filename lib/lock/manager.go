package lock

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/francoislaurent/escale-go/lib/blobstore"
	"github.com/francoislaurent/escale-go/lib/escalelog"
	"github.com/francoislaurent/escale-go/lib/marker"
)

// DefaultPollInterval is the fallback poll period for blocking acquisition
// (spec.md §4.3, "poll existence ... every poll_interval seconds
// (default 60)").
const DefaultPollInterval = 60 * time.Second

// Manager acquires, releases and inspects locks on a single blob store.
// One Manager is shared by every file in a repository; the lock itself,
// not the Manager, provides per-file exclusion.
type Manager struct {
	Store       blobstore.Store
	Codec       marker.Codec
	Client      string
	Timeout     time.Duration // lock_timeout; <=0 disables timeout-based recovery
	PollInterval time.Duration

	logger *escalelog.Logger
}

// New constructs a Manager. client is this process's identifier, used both
// as the lock owner and to recognize locks abandoned by a previous crash
// of this same client (spec.md §4.3, "corrupted enumeration").
func New(store blobstore.Store, codec marker.Codec, client string, timeout time.Duration) *Manager {
	return &Manager{
		Store:        store,
		Codec:        codec,
		Client:       client,
		Timeout:      timeout,
		PollInterval: DefaultPollInterval,
		logger:       escalelog.For("lock"),
	}
}

func (m *Manager) exists(ctx context.Context, lockPath string) (bool, error) {
	_, err := m.Store.Size(ctx, lockPath)
	if err == nil {
		return true, nil
	}
	if blobstore.IsNotFound(err) {
		return false, nil
	}
	return false, blobstore.Escalate(err)
}

// Acquire implements spec.md §4.3's acquisition algorithm. On success it
// returns true having written a fresh lock blob for target; on a
// non-blocking call that finds the lock held, it returns (false, nil).
func (m *Manager) Acquire(ctx context.Context, target string, mode Mode, blocking bool) (bool, error) {
	lockPath := m.Codec.LockName(target)

	if blocking {
		interval := m.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		for {
			present, err := m.exists(ctx, lockPath)
			if err != nil {
				return false, err
			}
			if !present {
				break
			}
			m.logger.Debugf("lock %s not available; waiting %s", lockPath, interval)
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(interval):
			}
		}
	} else {
		present, err := m.exists(ctx, lockPath)
		if err != nil {
			return false, err
		}
		if present {
			return false, nil
		}
	}

	// This write is itself unlocked; the race between two simultaneous
	// writers is resolved by the corrupted-lock repair protocol, not by
	// preventing the race (spec.md §4.3).
	tmp, err := os.CreateTemp("", "escale-lock-*")
	if err != nil {
		return false, blobstore.Escalate(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(Serialize(Info{Owner: m.Client, Mode: mode})); err != nil {
		tmp.Close()
		return false, blobstore.Escalate(err)
	}
	if err := tmp.Close(); err != nil {
		return false, blobstore.Escalate(err)
	}
	if err := m.Store.Push(ctx, tmpName, lockPath); err != nil {
		return false, blobstore.Escalate(err)
	}
	return true, nil
}

// Release deletes the lock blob for target. A missing lock is logged, not
// treated as an error (spec.md §4.3: "failure to delete is logged but not
// fatal if the blob is already gone").
func (m *Manager) Release(ctx context.Context, target string) error {
	lockPath := m.Codec.LockName(target)
	if err := m.Store.Delete(ctx, lockPath); err != nil {
		if blobstore.IsNotFound(err) {
			m.logger.Debugf("lock for %s already released", target)
			return nil
		}
		return blobstore.Escalate(err)
	}
	return nil
}

// Inspect reads and parses the lock blob for target. A read or parse
// failure yields a zero-value Info rather than an error, per the open
// question decision recorded in SPEC_FULL.md §13: unparseable locks are
// treated as corrupted (the safer choice) rather than as blocking.
func (m *Manager) Inspect(ctx context.Context, target string) (Info, error) {
	lockPath := m.Codec.LockName(target)
	tmp, err := os.CreateTemp("", "escale-lock-*")
	if err != nil {
		return Info{}, blobstore.Escalate(err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := m.Store.Get(ctx, lockPath, tmpName, false); err != nil {
		if ue := blobstore.Escalate(err); blobstore.IsUnrecoverableError(ue) {
			return Info{}, ue
		}
		return Info{Target: target}, nil
	}
	body, err := os.ReadFile(tmpName)
	if err != nil {
		return Info{Target: target}, nil
	}
	info, err := Parse(body)
	if err != nil {
		return Info{Target: target}, nil
	}
	info.Target = target
	return info, nil
}

// ListCorrupted implements spec.md §4.3's "corrupted enumeration": a lock
// is corrupted if it is owned by this client (implying a crash while
// holding it) or if it is ownerless and older than Timeout. If neither a
// client identity nor a timeout is configured, no lock can ever be judged
// corrupted and an empty slice is returned, mirroring
// AbstractRelay.listCorrupted's "if self.client evaluates to False" guard.
func (m *Manager) ListCorrupted(ctx context.Context, dir string, recursive bool) ([]Info, error) {
	if m.Client == "" && m.Timeout <= 0 {
		return nil, nil
	}
	entries, err := m.Store.List(ctx, dir, recursive, true)
	if err != nil {
		return nil, blobstore.Escalate(err)
	}
	now := time.Now().UTC()
	var out []Info
	for _, e := range entries {
		if !m.Codec.IsLock(e.Name) {
			continue
		}
		target := m.Codec.FromLock(path.Join(dir, e.Name))
		info, err := m.Inspect(ctx, target)
		if err != nil {
			return nil, err
		}
		switch {
		case info.Owner != "":
			if info.Owner == m.Client {
				out = append(out, info)
			}
		case m.Timeout > 0:
			mtime := e.MTime.UTC()
			if !mtime.IsZero() && now.Sub(mtime) > m.Timeout {
				out = append(out, info)
			}
		default:
			// Unparseable/ownerless lock but no timeout configured: treated
			// as corrupted immediately, since age cannot gate it. This
			// matches treating parse failures as corrupted (SPEC_FULL.md §13).
			if info.IsZero() {
				out = append(out, info)
			}
		}
	}
	return out, nil
}
