package sftpd

import (
	"github.com/pkg/errors"
	"github.com/taruti/binp"
)

const defaultLanguageTag = "en-US"

// VersionResponse answers Init. Like InitRequest, it carries no
// request id and its ExtensionData is the undelimited remainder of
// the payload.
type VersionResponse struct {
	Version       uint32
	ExtensionData []byte
}

func (VersionResponse) PacketType() PacketType { return PktVersion }

func (m VersionResponse) MarshalPayload() []byte {
	return binp.Out().B32(m.Version).Bytes(m.ExtensionData).Out()
}

func (m *VersionResponse) UnmarshalPayload(b []byte) error {
	if err := binp.NewParser(b).B32(&m.Version).End(); err != nil {
		return err
	}
	m.ExtensionData = append([]byte(nil), b[4:]...)
	return nil
}

// StatusResponse reports the outcome of a request that has no more
// specific response shape.
type StatusResponse struct {
	Header
	Status      StatusType
	Message     string
	LanguageTag string
}

func (StatusResponse) PacketType() PacketType { return PktStatus }

// newStatus builds a StatusResponse with the status's canned message
// text and the standard "en-US" language tag.
func newStatus(id uint32, status StatusType, detail string) StatusResponse {
	msg := status.message()
	if detail != "" {
		msg = detail
	}
	return StatusResponse{Header: Header{ID: id}, Status: status, Message: msg, LanguageTag: defaultLanguageTag}
}

func (m StatusResponse) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32(uint32(m.Status)).B32String(m.Message).B32String(m.LanguageTag).Out()
}

func (m *StatusResponse) UnmarshalPayload(b []byte) error {
	var status uint32
	p := binp.NewParser(b).B32(&m.ID).B32(&status).B32String(&m.Message).B32String(&m.LanguageTag)
	m.Status = StatusType(status)
	return p.End()
}

// HandleResponse returns a freshly allocated file or directory
// handle, encoded as the dashed string form of its UUID.
type HandleResponse struct {
	Header
	Handle string
}

func (HandleResponse) PacketType() PacketType { return PktHandle }

func (m HandleResponse) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32String(m.Handle).Out()
}

func (m *HandleResponse) UnmarshalPayload(b []byte) error {
	return binp.NewParser(b).B32(&m.ID).B32String(&m.Handle).End()
}

// DataResponse carries bytes read from a file.
type DataResponse struct {
	Header
	Data []byte
}

func (DataResponse) PacketType() PacketType { return PktData }

func (m DataResponse) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).B32Bytes(m.Data).Out()
}

func (m *DataResponse) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	var length uint32
	var data []byte
	p = p.B32(&m.ID).B32(&length)
	if err := p.BytesPeek(int(length), &data).End(); err != nil {
		return err
	}
	m.Data = append([]byte(nil), data...)
	return nil
}

// NameEntry is one directory entry or RealPath result carried by a
// Name response.
type NameEntry struct {
	Filename string
	Longname string
	Attrs    FileAttributes
}

// NameResponse lists directory entries (ReadDir) or a single resolved
// path (RealPath).
type NameResponse struct {
	Header
	Files []NameEntry
}

func (NameResponse) PacketType() PacketType { return PktName }

func (m NameResponse) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID).B32(uint32(len(m.Files)))
	for _, f := range m.Files {
		o = o.B32String(f.Filename).B32String(f.Longname)
		o = marshalAttrs(o, f.Attrs)
	}
	return o.Out()
}

func (m *NameResponse) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b)
	var count uint32
	p = p.B32(&m.ID).B32(&count)
	m.Files = make([]NameEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var f NameEntry
		p = p.B32String(&f.Filename).B32String(&f.Longname)
		p = unmarshalAttrs(p, &f.Attrs)
		m.Files = append(m.Files, f)
	}
	return p.End()
}

// AttrsResponse answers Lstat/Stat/Fstat with a single attribute
// record.
type AttrsResponse struct {
	Header
	Attrs FileAttributes
}

func (AttrsResponse) PacketType() PacketType { return PktAttrs }

func (m AttrsResponse) MarshalPayload() []byte {
	o := binp.Out().B32(m.ID)
	return marshalAttrs(o, m.Attrs).Out()
}

func (m *AttrsResponse) UnmarshalPayload(b []byte) error {
	p := binp.NewParser(b).B32(&m.ID)
	return unmarshalAttrs(p, &m.Attrs).End()
}

// ExtendedReplyResponse answers an ExtendedRequest. This core never
// emits one (extended requests always draw OpUnsupported) but the
// type exists so the codec can round-trip it.
type ExtendedReplyResponse struct {
	Header
	Data []byte
}

func (ExtendedReplyResponse) PacketType() PacketType { return PktExtendedReply }

func (m ExtendedReplyResponse) MarshalPayload() []byte {
	return binp.Out().B32(m.ID).Bytes(m.Data).Out()
}

func (m *ExtendedReplyResponse) UnmarshalPayload(b []byte) error {
	if err := binp.NewParser(b).B32(&m.ID).End(); err != nil {
		return err
	}
	m.Data = append([]byte(nil), b[4:]...)
	return nil
}

// decodeResponse builds the zero-value response struct for t and
// unmarshals payload into it. It exists primarily for tests that
// exercise the codec's response-side round trip.
func decodeResponse(t PacketType, payload []byte) (Message, error) {
	var m interface {
		Message
		UnmarshalPayload([]byte) error
	}
	switch t {
	case PktVersion:
		m = &VersionResponse{}
	case PktStatus:
		m = &StatusResponse{}
	case PktHandle:
		m = &HandleResponse{}
	case PktData:
		m = &DataResponse{}
	case PktName:
		m = &NameResponse{}
	case PktAttrs:
		m = &AttrsResponse{}
	case PktExtendedReply:
		m = &ExtendedReplyResponse{}
	default:
		return nil, errors.Errorf("sftpd: %v is not a response packet type", t)
	}
	if err := m.UnmarshalPayload(payload); err != nil {
		return nil, err
	}
	return m, nil
}

// payloadMarshaler is implemented by every Message in this package.
type payloadMarshaler interface {
	Message
	MarshalPayload() []byte
}

// Encode frames m as a complete wire packet.
func Encode(m payloadMarshaler) []byte {
	return Serialize(m.PacketType(), m.MarshalPayload())
}
