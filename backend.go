package sftpd

// FileSystem is the capability interface the dispatcher consumes to
// execute filesystem operations. Alternative backends (in-memory,
// object-store-backed, etc.) may be substituted by satisfying this
// contract; every implementation must also apply the NormalizePath
// path-jail normalization policy before touching storage.
type FileSystem interface {
	// Metadata returns the attributes of path. If followSymlink is
	// false the entry itself is reported (Lstat semantics); if true,
	// symlinks are resolved (Stat semantics).
	Metadata(path string, followSymlink bool) (Metadata, error)

	// List returns one Metadata entry per child of the directory at
	// path, in host order. Each entry's Path field is the bare
	// filename, not joined with path.
	List(path string) ([]NamedMetadata, error)

	// Open opens path according to the given flags, creating it if
	// requested, and returns a random-access file.
	Open(path string, read, write, append, create, truncate, createNew bool) (RandomAccessFile, error)

	// SetMetadata applies whichever of uidGid, permissions and
	// atimeMtime are non-nil to path.
	SetMetadata(path string, uidGid *UidGid, permissions *uint32, atimeMtime *ATimeMTime) error

	DeleteFile(path string) error
	Mkdir(path string) error
	Rmdir(path string) error
	Rename(from, to string) error

	// NormalizePath lexically normalizes path and confines it under
	// the backend's root, failing with ErrInvalidPath if the result
	// would escape upward. It performs no I/O.
	NormalizePath(path string) (string, error)
}

// UidGid is a pair of ownership ids, used by SetMetadata when the
// client's FileAttributes carried the UidGid flag.
type UidGid struct {
	Uid, Gid uint32
}

// ATimeMTime is a pair of access/modification times, used by
// SetMetadata when the client's FileAttributes carried the
// ACModTime flag.
type ATimeMTime struct {
	ATime, MTime uint32
}

// UidGidPair extracts the (uid, gid) pair from a's flags, or nil if the
// UidGid bit was not set.
func (a FileAttributes) UidGidPair() *UidGid {
	if a.Flags&AttrUidGid == 0 {
		return nil
	}
	return &UidGid{Uid: a.Uid, Gid: a.Gid}
}

// PermissionsValue extracts the permissions field from a's flags, or
// nil if the Permissions bit was not set.
func (a FileAttributes) PermissionsValue() *uint32 {
	if a.Flags&AttrPermissions == 0 {
		return nil
	}
	p := a.Permissions
	return &p
}

// ATimeMTimePair extracts the (atime, mtime) pair from a's flags, or
// nil if the ACModTime bit was not set.
func (a FileAttributes) ATimeMTimePair() *ATimeMTime {
	if a.Flags&AttrACModTime == 0 {
		return nil
	}
	return &ATimeMTime{ATime: a.ATime, MTime: a.MTime}
}
