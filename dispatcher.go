package sftpd

import (
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/taruti/bytepool"
)

// Dispatcher is the per-session request/response state machine: it
// owns one handle Registry and drives calls against a shared
// FileSystem backend, turning each decoded request into exactly one
// response Message (Init is handled separately by the session loop
// since it carries no request id).
type Dispatcher struct {
	fs       FileSystem
	registry *Registry
	log      Logger
}

// NewDispatcher returns a dispatcher with a fresh, empty handle
// registry over the given backend.
func NewDispatcher(fs FileSystem, log Logger) *Dispatcher {
	if log == nil {
		log = NopLogger
	}
	return &Dispatcher{fs: fs, registry: NewRegistry(), log: log}
}

// Close releases every handle still open in this session, per §5's
// "when the transport closes... all handles are dropped".
func (d *Dispatcher) Close() {
	d.registry.CloseAll()
}

// Dispatch routes a decoded, non-Init request to its handler and
// returns the response to encode. It never returns an error: every
// failure is already folded into a Status response per §4.6.
func (d *Dispatcher) Dispatch(req Message) payloadMarshaler {
	switch m := req.(type) {
	case *OpenRequest:
		return d.open(m)
	case *CloseRequest:
		return d.close(m)
	case *ReadRequest:
		return d.read(m)
	case *WriteRequest:
		return d.write(m)
	case *LstatRequest:
		return d.stat(m.Header, m.Path, false)
	case *StatRequest:
		return d.stat(m.Header, m.Path, true)
	case *FstatRequest:
		return d.fstat(m)
	case *SetstatRequest:
		return d.setstat(m.Header, m.Path, m.Attrs)
	case *FSetstatRequest:
		return d.fsetstat(m)
	case *OpenDirRequest:
		return d.openDir(m)
	case *ReadDirRequest:
		return d.readDir(m)
	case *RemoveRequest:
		return d.remove(m)
	case *MkdirRequest:
		return d.mkdir(m)
	case *RmdirRequest:
		return d.rmdir(m)
	case *RealPathRequest:
		return d.realPath(m)
	case *RenameRequest:
		return d.rename(m)
	case *ReadLinkRequest:
		return newStatus(m.ID, StatusOpUnsupported, "")
	case *SymlinkRequest:
		return newStatus(m.ID, StatusOpUnsupported, "")
	case *ExtendedRequest:
		return newStatus(m.ID, StatusOpUnsupported, "")
	default:
		return newStatus(0, StatusBadMessage, "unexpected request type")
	}
}

func (d *Dispatcher) open(m *OpenRequest) payloadMarshaler {
	create := m.Pflags.has(OpenCreate) && !m.Pflags.has(OpenExclude)
	createNew := m.Pflags.has(OpenCreate) && m.Pflags.has(OpenExclude)
	f, err := d.fs.Open(m.Path,
		m.Pflags.has(OpenRead),
		m.Pflags.has(OpenWrite),
		m.Pflags.has(OpenAppend),
		create,
		m.Pflags.has(OpenTruncate),
		createNew,
	)
	if err != nil {
		d.log.Error("open failed", logrus.Fields{"path": m.Path, "err": err})
		return errorStatus(m.ID, err)
	}
	meta, err := d.fs.Metadata(m.Path, true)
	if err != nil {
		_ = f.Close()
		return errorStatus(m.ID, err)
	}
	handle := d.registry.OpenFile(newOpenFile(meta, f))
	d.log.Debug("opened", logrus.Fields{"path": m.Path, "handle": handle})
	return HandleResponse{Header: m.Header, Handle: handle}
}

func (d *Dispatcher) close(m *CloseRequest) payloadMarshaler {
	found, err := d.registry.Close(m.Handle)
	if !found {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	if err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

const maxReadLength = 256 * 1024

func (d *Dispatcher) read(m *ReadRequest) payloadMarshaler {
	f, ok := d.registry.GetFile(m.Handle)
	if !ok {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	length := m.Len
	if length > maxReadLength {
		length = maxReadLength
	}
	buf := bytepool.Alloc(int(length))
	var n int
	var err error
	_ = f.WithLock(func(_ *int64) error {
		n, err = f.File.ReadAt(buf, int64(m.Offset))
		return nil
	})
	if n == 0 {
		bytepool.Free(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return errorStatus(m.ID, err)
		}
		return newStatus(m.ID, StatusEOF, "")
	}
	return DataResponse{Header: m.Header, Data: buf[:n]}
}

func (d *Dispatcher) write(m *WriteRequest) payloadMarshaler {
	f, ok := d.registry.GetFile(m.Handle)
	if !ok {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	var err error
	_ = f.WithLock(func(_ *int64) error {
		off := int64(m.Offset)
		remaining := m.Data
		for len(remaining) > 0 {
			var n int
			n, err = f.File.WriteAt(remaining, off)
			if err != nil {
				return nil
			}
			remaining = remaining[n:]
			off += int64(n)
		}
		return nil
	})
	if err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

func (d *Dispatcher) stat(h Header, path string, followSymlink bool) payloadMarshaler {
	meta, err := d.fs.Metadata(path, followSymlink)
	if err != nil {
		return errorStatus(h.ID, err)
	}
	return AttrsResponse{Header: h, Attrs: meta.ToAttrs()}
}

func (d *Dispatcher) fstat(m *FstatRequest) payloadMarshaler {
	f, ok := d.registry.GetFile(m.Handle)
	if !ok {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	return AttrsResponse{Header: m.Header, Attrs: f.Metadata.ToAttrs()}
}

func (d *Dispatcher) setstat(h Header, path string, attrs FileAttributes) payloadMarshaler {
	err := d.fs.SetMetadata(path, attrs.UidGidPair(), attrs.PermissionsValue(), attrs.ATimeMTimePair())
	if err != nil {
		return errorStatus(h.ID, err)
	}
	return newStatus(h.ID, StatusOK, "")
}

func (d *Dispatcher) fsetstat(m *FSetstatRequest) payloadMarshaler {
	f, ok := d.registry.GetFile(m.Handle)
	if !ok {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	var resp payloadMarshaler
	_ = f.WithLock(func(_ *int64) error {
		resp = d.setstat(m.Header, f.Metadata.Path, m.Attrs)
		return nil
	})
	return resp
}

func (d *Dispatcher) openDir(m *OpenDirRequest) payloadMarshaler {
	children, err := d.fs.List(m.Path)
	if err != nil {
		return errorStatus(m.ID, err)
	}
	handle := d.registry.OpenDir(newOpenDir(m.Path, children))
	return HandleResponse{Header: m.Header, Handle: handle}
}

func (d *Dispatcher) readDir(m *ReadDirRequest) payloadMarshaler {
	dir, ok := d.registry.GetDir(m.Handle)
	if !ok {
		return newStatus(m.ID, StatusNoSuchFile, "")
	}
	entries, more := dir.Next()
	if !more {
		return newStatus(m.ID, StatusEOF, "")
	}
	return NameResponse{Header: m.Header, Files: entries}
}

func (d *Dispatcher) remove(m *RemoveRequest) payloadMarshaler {
	if err := d.fs.DeleteFile(m.Path); err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

func (d *Dispatcher) mkdir(m *MkdirRequest) payloadMarshaler {
	if err := d.fs.Mkdir(m.Path); err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

func (d *Dispatcher) rmdir(m *RmdirRequest) payloadMarshaler {
	if err := d.fs.Rmdir(m.Path); err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

func (d *Dispatcher) realPath(m *RealPathRequest) payloadMarshaler {
	norm, err := d.fs.NormalizePath(m.Path)
	if err != nil {
		return errorStatus(m.ID, err)
	}
	meta, err := d.fs.Metadata(norm, true)
	if err != nil {
		return errorStatus(m.ID, err)
	}
	return NameResponse{Header: m.Header, Files: []NameEntry{{
		Filename: norm,
		Longname: norm,
		Attrs:    meta.ToAttrs(),
	}}}
}

func (d *Dispatcher) rename(m *RenameRequest) payloadMarshaler {
	if err := d.fs.Rename(m.OldPath, m.NewPath); err != nil {
		return errorStatus(m.ID, err)
	}
	return newStatus(m.ID, StatusOK, "")
}

// errorStatus maps a backend error to a Status response: EOF to EOF,
// an escaping path to Failure("invalid path"), a permission error to
// PermissionDenied, and every other backend error, including a
// missing path, to Failure carrying err's message. NoSuchFile is
// reserved for handle-lookup misses, which callers check directly
// against the registry before ever reaching here.
func errorStatus(id uint32, err error) StatusResponse {
	switch {
	case errors.Is(err, io.EOF):
		return newStatus(id, StatusEOF, "")
	case errors.Is(err, ErrInvalidPath):
		return newStatus(id, StatusFailure, "invalid path")
	case errors.Is(err, os.ErrPermission):
		return newStatus(id, StatusPermissionDenied, "")
	default:
		return newStatus(id, StatusFailure, err.Error())
	}
}
