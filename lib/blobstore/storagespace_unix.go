//go:build !windows

package blobstore

import "golang.org/x/sys/unix"

// storageSpace reports available and total space, in megabytes, on the
// filesystem backing root (spec.md §12's storageSpace/size quota query,
// grounded on original_source's AbstractRelay.storageSpace contract).
func storageSpace(root string) (available, quota int64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(root, &stat); err != nil {
		return 0, 0, err
	}
	const mb = 1024 * 1024
	available = int64(stat.Bavail) * int64(stat.Bsize) / mb
	quota = int64(stat.Blocks) * int64(stat.Bsize) / mb
	return available, quota, nil
}
