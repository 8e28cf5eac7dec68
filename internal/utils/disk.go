package utils

import (
	"github.com/shirou/gopsutil/v4/disk"
)

// FreeSpace returns the bytes available to unprivileged users on the volume holding dir.
func FreeSpace(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}
