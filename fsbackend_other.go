//go:build !unix

package sftpd

import (
	"os"

	"github.com/sirupsen/logrus"
)

// platformOwnership has no non-Unix equivalent; callers get 0/0, same
// as the "can't set UID on non-Unix platforms" stance the reference
// filesystem backend takes for the write side.
func platformOwnership(fi os.FileInfo) (uid, gid uint32) {
	return 0, 0
}

// platformPermissions reports a fixed mode on non-POSIX hosts, where
// the native permission model doesn't map onto POSIX bits.
func platformPermissions(fi os.FileInfo) uint32 {
	return 0o755
}

func chown(path string, uid, gid uint32) error {
	logrus.Warnf("sftpd: ignoring uid/gid set on non-POSIX host for %s", path)
	return nil
}

func chmod(path string, perm uint32) error {
	logrus.Warnf("sftpd: ignoring permission set on non-POSIX host for %s", path)
	return nil
}

func isCrossDeviceRenameError(err error) bool {
	return false
}
