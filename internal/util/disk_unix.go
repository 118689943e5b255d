//go:build unix

package util

import "golang.org/x/sys/unix"

// AvailableDiskBytes returns the bytes available to unprivileged users on the
// filesystem holding path. Returns 0 if it cannot be determined.
func AvailableDiskBytes(path string) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0
	}
	return uint64(st.Bavail) * uint64(st.Bsize)
}
