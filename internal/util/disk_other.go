//go:build !unix

package util

// AvailableDiskBytes is not supported on this platform and always returns 0.
func AvailableDiskBytes(path string) uint64 {
	return 0
}
