//go:build !linux

package fs

import (
	iofs "io/fs"
	"time"
)

func changeTime(info iofs.FileInfo) time.Time {
	return info.ModTime()
}
