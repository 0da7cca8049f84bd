package sftpd

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/taruti/binp"
)

// parseHandle validates h as a canonical dashed UUID, the wire form
// every handle field must take (see registry.go). A malformed handle
// fails unmarshaling outright rather than being indistinguishable
// from a handle that parses but was never registered.
func parseHandle(h string) error {
	if _, err := uuid.Parse(h); err != nil {
		return errors.Wrap(err, "sftpd: malformed handle")
	}
	return nil
}

// Header carries the request id present on every request payload
// except Init.
type Header struct {
	ID uint32
}

// Message is implemented by every request and response payload type.
// PacketType reports the wire type tag used to frame the payload.
type Message interface {
	PacketType() PacketType
}

// InitRequest is the client's handshake packet. Unlike every other
// request it carries no id; ExtensionData is the undelimited
// remainder of the payload, not a length-prefixed String.
type InitRequest struct {
	Version       uint32
	ExtensionData []byte
}

func (InitRequest) PacketType() PacketType { return PktInit }

func (m *InitRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	if err := p.B32(&m.Version).End(); err != nil {
		return err
	}
	m.ExtensionData = append([]byte(nil), b[4:]...)
	return nil
}

func (m InitRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.Version).Bytes(m.ExtensionData).Out()
}

// OpenRequest requests a file be opened or created.
type OpenRequest struct {
	Header
	Path   string
	Pflags OpenFlags
	Attrs  FileAttributes
}

func (OpenRequest) PacketType() PacketType { return PktOpen }

func (m *OpenRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	var pflags uint32
	p = p.B32(&m.ID).B32String(&m.Path).B32(&pflags)
	m.Pflags = OpenFlags(pflags)
	return unmarshalAttrs(p, &m.Attrs).End()
}

func (m OpenRequest) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID).B32String(m.Path).B32(uint32(m.Pflags))
	return marshalAttrs(o, m.Attrs).Out()
}

// CloseRequest closes a file or directory handle.
type CloseRequest struct {
	Header
	Handle string
}

func (CloseRequest) PacketType() PacketType { return PktClose }

func (m *CloseRequest) UnmarshalPayload(b []byte) error {
	if err := binp.NewParser(b).B32(&m.ID).B32String(&m.Handle).End(); err != nil {
		return err
	}
	return parseHandle(m.Handle)
}

func (m CloseRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.Handle).Out()
}

// ReadRequest requests up to Len bytes starting at Offset.
type ReadRequest struct {
	Header
	Handle string
	Offset uint64
	Len    uint32
}

func (ReadRequest) PacketType() PacketType { return PktRead }

func (m *ReadRequest) UnmarshalPayload(b []byte) error {
	if err := binp.NewParser(b).B32(&m.ID).B32String(&m.Handle).B64(&m.Offset).B32(&m.Len).End(); err != nil {
		return err
	}
	return parseHandle(m.Handle)
}

func (m ReadRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.Handle).B64(m.Offset).B32(m.Len).Out()
}

// WriteRequest writes Data at Offset.
type WriteRequest struct {
	Header
	Handle string
	Offset uint64
	Data   []byte
}

func (WriteRequest) PacketType() PacketType { return PktWrite }

func (m *WriteRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	var length uint32
	p = p.B32(&m.ID).B32String(&m.Handle).B64(&m.Offset).B32(&length)
	var data []byte
	if err := p.BytesPeek(int(length), &data).End(); err != nil {
		return err
	}
	if err := parseHandle(m.Handle); err != nil {
		return err
	}
	m.Data = append([]byte(nil), data...)
	return nil
}

func (m WriteRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.Handle).B64(m.Offset).B32Bytes(m.Data).Out()
}

// pathRequest is the common shape of Lstat/Stat/Remove/RmDir/RealPath/
// ReadLink/OpenDir: an id and a single path string.
type pathRequest struct {
	Header
	Path string
}

func (m *pathRequest) unmarshal(b []byte) error {
	return binp.NewParser(b).B32(&m.ID).B32String(&m.Path).End()
}

func (m pathRequest) marshal() []byte {
	return binp.Out().B32(m.ID).B32String(m.Path).Out()
}

type LstatRequest struct{ pathRequest }

func (LstatRequest) PacketType() PacketType           { return PktLstat }
func (m *LstatRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m LstatRequest) MarshalPayload() []byte           { return m.marshal() }

type StatRequest struct{ pathRequest }

func (StatRequest) PacketType() PacketType           { return PktStat }
func (m *StatRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m StatRequest) MarshalPayload() []byte           { return m.marshal() }

type RemoveRequest struct{ pathRequest }

func (RemoveRequest) PacketType() PacketType           { return PktRemove }
func (m *RemoveRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m RemoveRequest) MarshalPayload() []byte           { return m.marshal() }

type RmdirRequest struct{ pathRequest }

func (RmdirRequest) PacketType() PacketType           { return PktRmdir }
func (m *RmdirRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m RmdirRequest) MarshalPayload() []byte           { return m.marshal() }

type RealPathRequest struct{ pathRequest }

func (RealPathRequest) PacketType() PacketType           { return PktRealpath }
func (m *RealPathRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m RealPathRequest) MarshalPayload() []byte           { return m.marshal() }

type ReadLinkRequest struct{ pathRequest }

func (ReadLinkRequest) PacketType() PacketType           { return PktReadlink }
func (m *ReadLinkRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m ReadLinkRequest) MarshalPayload() []byte           { return m.marshal() }

type OpenDirRequest struct{ pathRequest }

func (OpenDirRequest) PacketType() PacketType           { return PktOpendir }
func (m *OpenDirRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m OpenDirRequest) MarshalPayload() []byte           { return m.marshal() }

// handleRequest is the common shape of Fstat/ReadDir: an id and a
// handle string only.
type handleRequest struct {
	Header
	Handle string
}

func (m *handleRequest) unmarshal(b []byte) error {
	if err := binp.NewParser(b).B32(&m.ID).B32String(&m.Handle).End(); err != nil {
		return err
	}
	return parseHandle(m.Handle)
}

func (m handleRequest) marshal() []byte {
	return binp.Out().B32(m.ID).B32String(m.Handle).Out()
}

type FstatRequest struct{ handleRequest }

func (FstatRequest) PacketType() PacketType           { return PktFstat }
func (m *FstatRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m FstatRequest) MarshalPayload() []byte           { return m.marshal() }

type ReadDirRequest struct{ handleRequest }

func (ReadDirRequest) PacketType() PacketType           { return PktReaddir }
func (m *ReadDirRequest) UnmarshalPayload(b []byte) error { return m.unmarshal(b) }
func (m ReadDirRequest) MarshalPayload() []byte           { return m.marshal() }

// SetstatRequest sets attributes on a path.
type SetstatRequest struct {
	Header
	Path  string
	Attrs FileAttributes
}

func (SetstatRequest) PacketType() PacketType { return PktSetstat }

func (m *SetstatRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b).B32(&m.ID).B32String(&m.Path)
	return unmarshalAttrs(p, &m.Attrs).End()
}

func (m SetstatRequest) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID).B32String(m.Path)
	return marshalAttrs(o, m.Attrs).Out()
}

// FSetstatRequest sets attributes on an open file handle.
type FSetstatRequest struct {
	Header
	Handle string
	Attrs  FileAttributes
}

func (FSetstatRequest) PacketType() PacketType { return PktFsetstat }

func (m *FSetstatRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b).B32(&m.ID).B32String(&m.Handle)
	if err := unmarshalAttrs(p, &m.Attrs).End(); err != nil {
		return err
	}
	return parseHandle(m.Handle)
}

func (m FSetstatRequest) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID).B32String(m.Handle)
	return marshalAttrs(o, m.Attrs).Out()
}

// MkdirRequest creates a directory. Attrs are accepted on the wire
// but ignored by the dispatcher.
type MkdirRequest struct {
	Header
	Path  string
	Attrs FileAttributes
}

func (MkdirRequest) PacketType() PacketType { return PktMkdir }

func (m *MkdirRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b).B32(&m.ID).B32String(&m.Path)
	return unmarshalAttrs(p, &m.Attrs).End()
}

func (m MkdirRequest) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID).B32String(m.Path)
	return marshalAttrs(o, m.Attrs).Out()
}

// RenameRequest renames OldPath to NewPath.
type RenameRequest struct {
	Header
	OldPath string
	NewPath string
}

func (RenameRequest) PacketType() PacketType { return PktRename }

func (m *RenameRequest) UnmarshalPayload(b []byte) error {
	return binp.NewParser(b).B32(&m.ID).B32String(&m.OldPath).B32String(&m.NewPath).End()
}

func (m RenameRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.OldPath).B32String(m.NewPath).Out()
}

// SymlinkRequest creates LinkPath as a symlink pointing at
// TargetPath. Always answered with OpUnsupported; see DESIGN.md.
type SymlinkRequest struct {
	Header
	LinkPath   string
	TargetPath string
}

func (SymlinkRequest) PacketType() PacketType { return PktSymlink }

func (m *SymlinkRequest) UnmarshalPayload(b []byte) error {
	return binp.NewParser(b).B32(&m.ID).B32String(&m.LinkPath).B32String(&m.TargetPath).End()
}

func (m SymlinkRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.LinkPath).B32String(m.TargetPath).Out()
}

// ExtendedRequest carries a vendor-defined extension request. The
// dispatcher always answers OpUnsupported; Data is the raw remainder
// of the payload following the request name string.
type ExtendedRequest struct {
	Header
	Request string
	Data    []byte
}

func (ExtendedRequest) PacketType() PacketType { return PktExtended }

func (m *ExtendedRequest) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	if err := p.B32(&m.ID).B32String(&m.Request).End(); err != nil {
		return err
	}
	consumed := 4 + 4 + len(m.Request)
	if consumed > len(b) {
		return errors.New("sftpd: extended payload truncated")
	}
	m.Data = append([]byte(nil), b[consumed:]...)
	return nil
}

func (m ExtendedRequest) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.Request).Bytes(m.Data).Out()
}

// decodeRequest builds the zero-value request struct for t and
// unmarshals payload into it.
func decodeRequest(t PacketType, payload []byte) (Message, error) {
	var m interface {
		Message
		UnmarshalPayload([]byte) error
	}
	switch t {
	case PktInit:
		m = &InitRequest{}
	case PktOpen:
		m = &OpenRequest{}
	case PktClose:
		m = &CloseRequest{}
	case PktRead:
		m = &ReadRequest{}
	case PktWrite:
		m = &WriteRequest{}
	case PktLstat:
		m = &LstatRequest{}
	case PktFstat:
		m = &FstatRequest{}
	case PktSetstat:
		m = &SetstatRequest{}
	case PktFsetstat:
		m = &FSetstatRequest{}
	case PktOpendir:
		m = &OpenDirRequest{}
	case PktReaddir:
		m = &ReadDirRequest{}
	case PktRemove:
		m = &RemoveRequest{}
	case PktMkdir:
		m = &MkdirRequest{}
	case PktRmdir:
		m = &RmdirRequest{}
	case PktRealpath:
		m = &RealPathRequest{}
	case PktStat:
		m = &StatRequest{}
	case PktRename:
		m = &RenameRequest{}
	case PktReadlink:
		m = &ReadLinkRequest{}
	case PktSymlink:
		m = &SymlinkRequest{}
	case PktExtended:
		m = &ExtendedRequest{}
	default:
		return nil, errors.Errorf("sftpd: %v is not a request packet type", t)
	}
	if err := m.UnmarshalPayload(payload); err != nil {
		return nil, err
	}
	return m, nil
}
