package access

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/francoislaurent/escale-go/lib/escalelog"
)

// Mode selects how a Controller's Table gates uploads and downloads
// (spec.md §5): Upload and Download make a repository write-only or
// read-only respectively; Shared applies the Table's explicit decisions
// both ways; Conservative additionally refuses to overwrite a file that
// already exists locally unless the Table marks it writable, and records
// writability after each transfer (allowed after a pull, denied after a
// push).
type Mode string

const (
	ModeUpload       Mode = "upload"
	ModeDownload     Mode = "download"
	ModeShared       Mode = "shared"
	ModeConservative Mode = "conservative"
)

// ParseMode normalizes the mode names accepted by original_source's
// AccessController.mode setter: any "shar*" prefix means Shared, and
// "protective" is an alias for Conservative.
func ParseMode(s string) (Mode, error) {
	m := strings.ToLower(s)
	switch {
	case m == "download" || m == "upload":
		return Mode(m), nil
	case strings.HasPrefix(m, "shar"):
		return ModeShared, nil
	case m == "conservative" || m == "protective":
		return ModeConservative, nil
	default:
		return "", fmt.Errorf("access: mode %q not supported", s)
	}
}

// ErrPermission is returned by FileHandle.Delete when the controller's
// mode does not permit deleting the local copy of a file.
var ErrPermission = errors.New("access: delete not permitted in this mode")

// Controller manages access to the files of one local repository.
type Controller struct {
	Repository string
	Path       string
	Mode       Mode
	Table      *Table // nil disables persistent gating; every ability then defaults Allowed

	logger *escalelog.Logger
}

// NewController builds a Controller rooted at path. table may be nil,
// matching a repository run without persistent access attributes.
func NewController(repository, path string, mode Mode, table *Table) (*Controller, error) {
	if path == "" {
		return nil, errors.New("access: no local repository path given")
	}
	return &Controller{
		Repository: repository,
		Path:       filepath.Clean(path),
		Mode:       mode,
		Table:      table,
		logger:     escalelog.For("access"),
	}, nil
}

// Readable filters files (relative paths) down to those that may be
// uploaded. Download mode never uploads anything.
func (c *Controller) Readable(files []string) ([]string, error) {
	if c.Mode == ModeDownload {
		return nil, nil
	}
	if c.Table == nil {
		return files, nil
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		ok, err := c.Table.IsReadable(f, nil)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Writable reports the local absolute path a remote file filename would
// be downloaded to, and whether the download is permitted. Upload mode
// never downloads anything. Conservative mode denies overwriting a file
// that already exists locally unless the Table has explicitly marked it
// writable (spec.md §5, "conservative mode").
func (c *Controller) Writable(filename string) (string, bool, error) {
	if c.Mode == ModeUpload {
		return "", false, nil
	}
	abs := filepath.Join(c.Path, filename)
	if c.Table == nil {
		return abs, true, nil
	}
	var explicit *Ability
	if c.Mode == ModeConservative {
		if _, err := os.Stat(abs); err == nil {
			denied := Denied
			explicit = &denied
		}
	}
	ok, err := c.Table.IsWritable(filename, explicit)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return abs, true, nil
}

// ConfirmPull marks filename writable again after a successful download,
// undoing the protection Writable applied while the file was up to date
// (spec.md §5). Only conservative mode tracks this.
func (c *Controller) ConfirmPull(filename string) error {
	if c.Mode != ModeConservative || c.Table == nil {
		return nil
	}
	return c.Table.SetWritability(filename, Allowed)
}

// ConfirmPush marks filename not writable after a successful upload, so a
// later pull of the same file cannot clobber it until the Table marks it
// writable again (spec.md §5). Only conservative mode tracks this.
func (c *Controller) ConfirmPush(filename string) error {
	if c.Mode != ModeConservative || c.Table == nil {
		return nil
	}
	return c.Table.SetWritability(filename, Denied)
}

// FileHandle wraps controlled access to one local file: whether it
// exists, and whether deleting it is permitted in the controller's mode.
type FileHandle struct {
	path      string
	exists    bool
	canDelete bool
}

// Exists reports whether the underlying local file is present.
func (h FileHandle) Exists() bool { return h.exists }

// Path returns the local absolute path the handle was built for.
func (h FileHandle) Path() string { return h.path }

// Delete removes the underlying file if it exists and the mode permits
// deletion; only Download mode, where local copies are disposable pulled
// copies, allows this (spec.md §5, "accessor").
func (h FileHandle) Delete() error {
	if !h.exists {
		return nil
	}
	if !h.canDelete {
		return fmt.Errorf("%w: %s", ErrPermission, h.path)
	}
	return os.Remove(h.path)
}

// Accessor returns a FileHandle for filename (relative to the
// repository), capturing whether deletion is currently permitted.
func (c *Controller) Accessor(filename string) FileHandle {
	abs := filepath.Join(c.Path, filename)
	_, err := os.Stat(abs)
	exists := err == nil
	return FileHandle{
		path:      abs,
		exists:    exists,
		canDelete: exists && c.Mode == ModeDownload,
	}
}

// ModTime returns the local modification time of filename.
func (c *Controller) ModTime(filename string) (time.Time, error) {
	info, err := os.Stat(filepath.Join(c.Path, filename))
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// ListFiles walks the repository and returns every regular file's path
// relative to the root, skipping any file or directory whose name begins
// with "." (spec.md §5, "listFiles"). Relative, not absolute as §4.6's
// wording for the access table suggests, because every caller (relay
// target names, table keys) already addresses files relative to the
// repository root; an absolute path would have to be stripped right back
// down at each call site.
func (c *Controller) ListFiles() ([]string, error) {
	var out []string
	err := filepath.WalkDir(c.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == c.Path {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.Path, p)
		if err != nil {
			return err
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
