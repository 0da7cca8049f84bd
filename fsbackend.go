package sftpd

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// DirFS is the reference FileSystem backend: a chroot-style jail
// rooted at a single host directory.
type DirFS struct {
	root string
}

// NewDirFS resolves root to an absolute, symlink-free path and
// returns a backend confined to it. The root itself must already
// exist.
func NewDirFS(root string) (*DirFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "sftpd: resolving backend root")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, errors.Wrap(err, "sftpd: resolving backend root")
	}
	return &DirFS{root: resolved}, nil
}

// NormalizePath implements FileSystem.
func (d *DirFS) NormalizePath(path string) (string, error) {
	return normalizePath(path)
}

// resolve normalizes path and joins it under the root, the Go
// equivalent of the reference backend's full_normalize_path.
func (d *DirFS) resolve(path string) (string, error) {
	n, err := d.NormalizePath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, n), nil
}

// Metadata implements FileSystem.
func (d *DirFS) Metadata(path string, followSymlink bool) (Metadata, error) {
	full, err := d.resolve(path)
	if err != nil {
		return Metadata{}, err
	}
	m, err := stat(full, followSymlink)
	if err != nil {
		return Metadata{}, err
	}
	m.Path = path
	return m, nil
}

// List implements FileSystem.
func (d *DirFS) List(path string) ([]NamedMetadata, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]NamedMetadata, 0, len(entries))
	for _, e := range entries {
		m, err := stat(filepath.Join(full, e.Name()), false)
		if err != nil {
			return nil, err
		}
		m.Path = e.Name()
		out = append(out, NamedMetadata{Name: e.Name(), Metadata: m})
	}
	return out, nil
}

// Open implements FileSystem.
func (d *DirFS) Open(path string, read, write, appendMode, create, truncate, createNew bool) (RandomAccessFile, error) {
	full, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	flag := 0
	switch {
	case read && write:
		flag = os.O_RDWR
	case write:
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if appendMode {
		flag |= os.O_APPEND
	}
	if create {
		flag |= os.O_CREATE
	}
	if truncate {
		flag |= os.O_TRUNC
	}
	if createNew {
		flag |= os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(full, flag, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SetMetadata implements FileSystem.
func (d *DirFS) SetMetadata(path string, uidGid *UidGid, permissions *uint32, atimeMtime *ATimeMTime) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if uidGid != nil {
		if err := chown(full, uidGid.Uid, uidGid.Gid); err != nil {
			return err
		}
	}
	if permissions != nil {
		if err := chmod(full, *permissions); err != nil {
			return err
		}
	}
	if atimeMtime != nil {
		atime := time.Unix(int64(atimeMtime.ATime), 0)
		mtime := time.Unix(int64(atimeMtime.MTime), 0)
		if err := os.Chtimes(full, atime, mtime); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFile implements FileSystem.
func (d *DirFS) DeleteFile(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return errors.Wrap(err, "delete")
	}
	return nil
}

// Mkdir implements FileSystem.
func (d *DirFS) Mkdir(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	return os.Mkdir(full, 0o755)
}

// Rmdir implements FileSystem.
func (d *DirFS) Rmdir(path string) error {
	full, err := d.resolve(path)
	if err != nil {
		return err
	}
	return os.Remove(full)
}

// Rename implements FileSystem. When the source and destination live
// on different devices, os.Rename fails with EXDEV; this falls back
// to a copy-then-delete instead of surfacing the raw error.
func (d *DirFS) Rename(from, to string) error {
	fromFull, err := d.resolve(from)
	if err != nil {
		return err
	}
	toFull, err := d.resolve(to)
	if err != nil {
		return err
	}
	err = os.Rename(fromFull, toFull)
	if err == nil {
		return nil
	}
	if !isCrossDeviceRenameError(err) {
		return err
	}
	return copyThenRemove(fromFull, toFull)
}

func copyThenRemove(from, to string) error {
	info, err := os.Stat(from)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("sftpd: cross-device rename of a directory is not supported")
	}
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(from)
}

// stat builds a Metadata from the host filesystem entry at full,
// following symlinks when followSymlink is set (Stat semantics) and
// reporting the link itself otherwise (Lstat semantics).
func stat(full string, followSymlink bool) (Metadata, error) {
	var fi os.FileInfo
	var err error
	if followSymlink {
		fi, err = os.Stat(full)
	} else {
		fi, err = os.Lstat(full)
	}
	if err != nil {
		return Metadata{}, err
	}
	uid, gid := platformOwnership(fi)
	m := Metadata{
		Path:        full,
		Size:        uint64(fi.Size()),
		IsDir:       fi.IsDir(),
		IsFile:      fi.Mode().IsRegular(),
		IsSymlink:   fi.Mode()&os.ModeSymlink != 0,
		Uid:         uid,
		Gid:         gid,
		Permissions: platformPermissions(fi),
		ATime:       platformAccessTime(fi),
		MTime:       fi.ModTime(),
	}
	if m.IsSymlink {
		target, err := os.Readlink(full)
		if err != nil {
			return Metadata{}, err
		}
		m.LinkTarget = target
	}
	return m, nil
}
