package blobstore

import (
	"errors"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// ErrNotFound is returned by Get, Pop, Delete and Size when the named blob
// does not exist on the relay (spec.md §7, "Missing").
var ErrNotFound = errors.New("blobstore: blob not found")

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnrecoverable reports whether err corresponds to the EMFILE
// ("too many open files") condition that spec.md §4.3/§7 requires to be
// escalated to an unrecoverable, worker-terminating error.
func IsUnrecoverable(err error) bool {
	return errors.Is(err, syscall.EMFILE)
}

// Wrap annotates err with the failing operation and target, the way
// cmd/syncthing/cli/main.go uses github.com/pkg/errors.Wrap at every
// transport seam.
func Wrap(err error, op, target string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, "%s %q", op, target)
}

// UnrecoverableError marks a transport failure that must terminate the
// worker rather than merely fail the current tick (spec.md §7,
// "Unrecoverable transport"). It is the Go analogue of
// escale.base.exceptions.UnrecoverableError, raised by the Python _safe
// wrapper whenever errno == 24 (EMFILE).
type UnrecoverableError struct {
	Err error
}

func (e *UnrecoverableError) Error() string { return "unrecoverable: " + e.Err.Error() }
func (e *UnrecoverableError) Unwrap() error { return e.Err }

// Escalate wraps err in UnrecoverableError if it represents the EMFILE
// condition, otherwise returns err unchanged. Every seam that talks to the
// Store (lib/lock, lib/placeholder, lib/relay) calls this on the way out,
// mirroring the Python Relay._safe wrapper.
func Escalate(err error) error {
	if err == nil {
		return nil
	}
	if IsUnrecoverable(err) {
		return &UnrecoverableError{Err: err}
	}
	return err
}

// IsUnrecoverableError reports whether err is (or wraps) an
// UnrecoverableError.
func IsUnrecoverableError(err error) bool {
	var u *UnrecoverableError
	return errors.As(err, &u)
}
