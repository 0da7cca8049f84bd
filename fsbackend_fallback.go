//go:build !linux

package sftpd

import (
	"os"
	"time"
)

func platformAccessTime(fi os.FileInfo) time.Time {
	return fi.ModTime()
}
