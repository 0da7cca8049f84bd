package sftpd

import (
	"time"

	"github.com/taruti/binp"
)

// FileAttributes is the bitflag-tagged optional metadata record
// transmitted on the wire for Attrs/Name/Open/SetStat/MkDir payloads.
//
// Fields are only meaningful when the corresponding bit of Flags is
// set; a parser only reads the fields whose bit is present, in the
// declared order Size, UidGid, Permissions, ACModTime. Any other bits
// present in an incoming Flags value are kept but never acted on.
type FileAttributes struct {
	Flags       AttrFlag
	Size        uint64
	Uid, Gid    uint32
	Permissions uint32
	ATime       uint32
	MTime       uint32
}

// unmarshalAttrs reads a FileAttributes from p, consuming exactly the
// fields whose flag bits are set.
func unmarshalAttrs(p *binp.Parser, a *FileAttributes) *binp.Parser {
	p = p.B32((*uint32)(&a.Flags))
	if a.Flags&AttrSize != 0 {
		p = p.B64(&a.Size)
	}
	if a.Flags&AttrUidGid != 0 {
		p = p.B32(&a.Uid).B32(&a.Gid)
	}
	if a.Flags&AttrPermissions != 0 {
		p = p.B32(&a.Permissions)
	}
	if a.Flags&AttrACModTime != 0 {
		p = p.B32(&a.ATime).B32(&a.MTime)
	}
	return p
}

// marshalAttrs appends a's wire encoding to o. The Extended bit is
// always masked out: this core never emits extended attribute data.
func marshalAttrs(o *binp.Printer, a FileAttributes) *binp.Printer {
	flags := a.Flags &^ AttrExtended
	o = o.B32(uint32(flags))
	if flags&AttrSize != 0 {
		o = o.B64(a.Size)
	}
	if flags&AttrUidGid != 0 {
		o = o.B32(a.Uid).B32(a.Gid)
	}
	if flags&AttrPermissions != 0 {
		o = o.B32(a.Permissions)
	}
	if flags&AttrACModTime != 0 {
		o = o.B32(a.ATime).B32(a.MTime)
	}
	return o
}

// Metadata is the backend-facing view of a filesystem entry's
// attributes, independent of the wire's bitflag encoding.
type Metadata struct {
	Path        string
	Size        uint64
	IsDir       bool
	IsFile      bool
	LinkTarget  string // empty unless the entry is a symlink
	IsSymlink   bool
	Uid, Gid    uint32
	Permissions uint32
	ATime       time.Time
	MTime       time.Time
}

// directoryTypeBit is ORed into Permissions for directories, per the
// SFTP v3 convention of packing the file type into the high mode
// bits (S_IFDIR).
const directoryTypeBit = 0o040000

// ToAttrs converts Metadata into the wire FileAttributes. Size,
// UidGid, Permissions and ACModTime are always emitted; directories
// get the S_IFDIR type bit ORed into their permissions.
func (m Metadata) ToAttrs() FileAttributes {
	perm := m.Permissions
	if m.IsDir {
		perm |= directoryTypeBit
	}
	return FileAttributes{
		Flags:       AttrSize | AttrUidGid | AttrPermissions | AttrACModTime,
		Size:        m.Size,
		Uid:         m.Uid,
		Gid:         m.Gid,
		Permissions: perm,
		ATime:       uint32(m.ATime.Unix()),
		MTime:       uint32(m.MTime.Unix()),
	}
}

// NamedMetadata pairs a bare filename with its Metadata, the shape a
// FileSystem.List implementation returns one per directory child.
type NamedMetadata struct {
	Name string
	Metadata
}
