package blobstore

import (
	"context"
	"path"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store used by lib/relay, lib/lock and
// lib/placeholder tests in place of a mock framework, the way syncthing's
// db/model tests lean on small in-process fakes rather than mocks.
type MemStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	mtimes  map[string]time.Time
	nowFunc func() time.Time
}

// NewMemStore returns an empty store. now, if non-nil, overrides the clock
// used to stamp writes (tests use this to simulate lock age).
func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		blobs:   make(map[string][]byte),
		mtimes:  make(map[string]time.Time),
		nowFunc: now,
	}
}

func clean(p string) string {
	p = path.Clean("/" + p)
	return strings.TrimPrefix(p, "/")
}

func (s *MemStore) List(_ context.Context, dir string, recursive, withStats bool) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = clean(dir)
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}
	var out []Entry
	for name := range s.blobs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" {
			continue
		}
		if !recursive && strings.Contains(rest, "/") {
			continue
		}
		entry := Entry{Name: rest}
		if withStats {
			entry.MTime = s.mtimes[name]
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *MemStore) Push(_ context.Context, localPath, remotePath string) error {
	data, err := readLocal(localPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	remotePath = clean(remotePath)
	s.blobs[remotePath] = data
	s.mtimes[remotePath] = s.nowFunc()
	return nil
}

func (s *MemStore) Get(_ context.Context, remotePath, localPath string, makedirs bool) error {
	s.mu.Lock()
	data, ok := s.blobs[clean(remotePath)]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return writeLocal(localPath, data, makedirs)
}

func (s *MemStore) Pop(ctx context.Context, remotePath, localPath string, makedirs bool) error {
	if err := s.Get(ctx, remotePath, localPath, makedirs); err != nil {
		return err
	}
	return s.Delete(ctx, remotePath)
}

func (s *MemStore) Delete(_ context.Context, remotePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	remotePath = clean(remotePath)
	if _, ok := s.blobs[remotePath]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, remotePath)
	delete(s.mtimes, remotePath)
	return nil
}

func (s *MemStore) Size(_ context.Context, remotePath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[clean(remotePath)]
	if !ok {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

func (s *MemStore) Purge(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = clean(dir)
	prefix := dir
	if prefix != "" {
		prefix += "/"
	}
	for name := range s.blobs {
		if dir == "" || strings.HasPrefix(name, prefix) || name == dir {
			delete(s.blobs, name)
			delete(s.mtimes, name)
		}
	}
	return nil
}

// SetMTime backdates a blob's modification time; used by tests exercising
// lock_timeout-based corruption detection (spec.md §4.3).
func (s *MemStore) SetMTime(remotePath string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtimes[clean(remotePath)] = t
}

// PutBytes writes content directly into the store without touching the
// local filesystem, used by tests to seed relay state.
func (s *MemStore) PutBytes(remotePath string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remotePath = clean(remotePath)
	s.blobs[remotePath] = append([]byte(nil), content...)
	s.mtimes[remotePath] = s.nowFunc()
}

// GetBytes returns a blob's raw content, used by tests to assert on
// placeholder/lock bodies without round-tripping through a temp file.
func (s *MemStore) GetBytes(remotePath string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[clean(remotePath)]
	return data, ok
}
