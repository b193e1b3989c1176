package blobstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// FSStore is a Store backed by a directory on the local filesystem. It
// stands in for a real network relay transport (out of scope per
// spec.md §1) in single-host tests and deployments, and gives the atomic
// rename-into-place discipline of internal/osutil.AtomicWriter to every
// Push so that readers never observe a partially written blob.
type FSStore struct {
	Root string
}

func NewFSStore(root string) *FSStore {
	return &FSStore{Root: root}
}

func (s *FSStore) abs(p string) string {
	return filepath.Join(s.Root, filepath.FromSlash(p))
}

func (s *FSStore) List(_ context.Context, dir string, recursive, withStats bool) ([]Entry, error) {
	base := s.abs(dir)
	var out []Entry
	walkErr := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == base {
				return filepath.SkipDir
			}
			return err
		}
		if p == base {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		entry := Entry{Name: rel}
		if withStats {
			info, err := d.Info()
			if err != nil {
				return err
			}
			entry.MTime = info.ModTime().UTC()
		}
		out = append(out, entry)
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return nil, translate(walkErr, "list", dir)
	}
	return out, nil
}

func (s *FSStore) Push(_ context.Context, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return translate(err, "push", localPath)
	}
	dest := s.abs(remotePath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return translate(err, "push", remotePath)
	}
	w, err := newAtomicWriter(dest)
	if err != nil {
		return translate(err, "push", remotePath)
	}
	if _, err := w.Write(data); err != nil {
		return translate(err, "push", remotePath)
	}
	if err := w.Close(); err != nil {
		return translate(err, "push", remotePath)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, remotePath, localPath string, makedirs bool) error {
	src := s.abs(remotePath)
	data, err := os.ReadFile(src)
	if err != nil {
		return translate(err, "get", remotePath)
	}
	if err := writeLocal(localPath, data, makedirs); err != nil {
		return translate(err, "get", localPath)
	}
	return nil
}

func (s *FSStore) Pop(ctx context.Context, remotePath, localPath string, makedirs bool) error {
	if err := s.Get(ctx, remotePath, localPath, makedirs); err != nil {
		return err
	}
	return s.Delete(ctx, remotePath)
}

func (s *FSStore) Delete(_ context.Context, remotePath string) error {
	if err := os.Remove(s.abs(remotePath)); err != nil {
		return translate(err, "delete", remotePath)
	}
	return nil
}

func (s *FSStore) Size(_ context.Context, remotePath string) (int64, error) {
	info, err := os.Stat(s.abs(remotePath))
	if err != nil {
		return 0, translate(err, "size", remotePath)
	}
	return info.Size(), nil
}

func (s *FSStore) Purge(_ context.Context, dir string) error {
	if err := os.RemoveAll(s.abs(dir)); err != nil {
		return translate(err, "purge", dir)
	}
	return nil
}

// StorageSpace implements blobstore.SpaceReporter using the filesystem the
// relay directory lives on (spec.md §12, "storageSpace/size quota query").
func (s *FSStore) StorageSpace(_ context.Context) (available, quota int64, err error) {
	return storageSpace(s.Root)
}

func translate(err error, op, target string) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if isEMFILE(err) {
		return Wrap(syscall.EMFILE, op, target)
	}
	return Wrap(err, op, target)
}

func isEMFILE(err error) bool {
	return strings.Contains(err.Error(), "too many open files")
}

// atomicWriter mirrors internal/osutil.AtomicWriter: write to a temp file
// beside the destination, then rename into place on Close so a crashed
// Push never leaves a partially written regular file for a concurrent
// puller to observe (spec.md §4.5, the "last writer wins cleanly"
// invariant).
type atomicWriter struct {
	path string
	next *os.File
	err  error
}

func newAtomicWriter(path string) (*atomicWriter, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".escale-go.tmp.")
	if err != nil {
		return nil, err
	}
	return &atomicWriter{path: path, next: f}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.next.Write(p)
	if err != nil {
		w.err = err
		w.next.Close()
	}
	return n, err
}

func (w *atomicWriter) Close() error {
	if w.err != nil {
		return w.err
	}
	defer os.Remove(w.next.Name())
	if err := w.next.Close(); err != nil {
		w.err = err
		return err
	}
	if err := os.Rename(w.next.Name(), w.path); err != nil {
		w.err = err
		return err
	}
	w.err = io.ErrClosedPipe
	return nil
}
