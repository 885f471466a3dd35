//go:build linux

package fs

import (
	iofs "io/fs"
	"syscall"
	"time"
)

// changeTime returns the inode change time, the closest thing to a creation
// time Linux exposes through stat.
func changeTime(info iofs.FileInfo) time.Time {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec))
}
