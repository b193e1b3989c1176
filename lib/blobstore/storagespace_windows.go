//go:build windows

package blobstore

// storageSpace has no portable implementation on Windows in this core; a
// real deployment would use GetDiskFreeSpaceEx, left unimplemented because
// the concrete relay transport is out of scope (spec.md §1).
func storageSpace(root string) (available, quota int64, err error) {
	return 0, 0, nil
}
