//go:build unix

package sftpd

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// platformOwnership reports the owning uid/gid of fi, grounded on
// original_source/sftp-filesystem/src/filesystem.rs's use of
// MetadataExt::st_uid/st_gid.
func platformOwnership(fi os.FileInfo) (uid, gid uint32) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0
	}
	return st.Uid, st.Gid
}

// platformPermissions reports the raw POSIX permission bits of fi,
// including setuid/setgid/sticky, rather than Go's os.FileMode
// reinterpretation of them.
func platformPermissions(fi os.FileInfo) uint32 {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return uint32(fi.Mode().Perm())
	}
	return uint32(st.Mode) & 0o7777
}

// chown matches the reference filesystem backend's
// nix::unistd::chown call.
func chown(path string, uid, gid uint32) error {
	return unix.Chown(path, int(uid), int(gid))
}

func chmod(path string, perm uint32) error {
	return os.Chmod(path, os.FileMode(perm&0o7777))
}

// isCrossDeviceRenameError reports whether err is the host's EXDEV,
// the signal that a rename must fall back to copy-then-delete.
func isCrossDeviceRenameError(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
