package storage

import (
	"golang.org/x/sys/unix"
)

// Usage is a point-in-time snapshot of the filesystem holding a directory.
type Usage struct {
	TotalBytes  uint64
	FreeBytes   uint64
	UsedBytes   uint64
	UsedPercent float64
}

// DiskUsage reads occupancy of the filesystem containing path.
func DiskUsage(path string) (*Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free
	u := &Usage{
		TotalBytes: total,
		FreeBytes:  free,
		UsedBytes:  used,
	}
	if total > 0 {
		u.UsedPercent = float64(used) / float64(total) * 100
	}
	return u, nil
}
