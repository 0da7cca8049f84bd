// Package sftpd implements the server side of the SSH File Transfer
// Protocol version 3 (draft-ietf-secsh-filexfer-02): a wire codec, a
// per-session dispatcher and handle registry, and a pluggable
// [FileSystem] backend with a chroot-style reference implementation.
//
// The SSH transport itself — authentication, channel multiplexing,
// keypair management — is not provided here; ServeChannel consumes
// whatever duplex byte stream the transport hands it, typically an
// ssh.Channel from golang.org/x/crypto/ssh.
package sftpd

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// PacketType is the single byte tag that follows a packet's 32-bit
// length field on the wire.
type PacketType byte

const (
	PktInit           PacketType = 1
	PktVersion        PacketType = 2
	PktOpen           PacketType = 3
	PktClose          PacketType = 4
	PktRead           PacketType = 5
	PktWrite          PacketType = 6
	PktLstat          PacketType = 7
	PktFstat          PacketType = 8
	PktSetstat        PacketType = 9
	PktFsetstat       PacketType = 10
	PktOpendir        PacketType = 11
	PktReaddir        PacketType = 12
	PktRemove         PacketType = 13
	PktMkdir          PacketType = 14
	PktRmdir          PacketType = 15
	PktRealpath       PacketType = 16
	PktStat           PacketType = 17
	PktRename         PacketType = 18
	PktReadlink       PacketType = 19
	PktSymlink        PacketType = 20
	PktStatus         PacketType = 101
	PktHandle         PacketType = 102
	PktData           PacketType = 103
	PktName           PacketType = 104
	PktAttrs          PacketType = 105
	PktExtended       PacketType = 200
	PktExtendedReply  PacketType = 201
	pktUnimplemented  PacketType = 255
)

func (t PacketType) String() string {
	switch t {
	case PktInit:
		return "INIT"
	case PktVersion:
		return "VERSION"
	case PktOpen:
		return "OPEN"
	case PktClose:
		return "CLOSE"
	case PktRead:
		return "READ"
	case PktWrite:
		return "WRITE"
	case PktLstat:
		return "LSTAT"
	case PktFstat:
		return "FSTAT"
	case PktSetstat:
		return "SETSTAT"
	case PktFsetstat:
		return "FSETSTAT"
	case PktOpendir:
		return "OPENDIR"
	case PktReaddir:
		return "READDIR"
	case PktRemove:
		return "REMOVE"
	case PktMkdir:
		return "MKDIR"
	case PktRmdir:
		return "RMDIR"
	case PktRealpath:
		return "REALPATH"
	case PktStat:
		return "STAT"
	case PktRename:
		return "RENAME"
	case PktReadlink:
		return "READLINK"
	case PktSymlink:
		return "SYMLINK"
	case PktStatus:
		return "STATUS"
	case PktHandle:
		return "HANDLE"
	case PktData:
		return "DATA"
	case PktName:
		return "NAME"
	case PktAttrs:
		return "ATTRS"
	case PktExtended:
		return "EXTENDED"
	case PktExtendedReply:
		return "EXTENDED_REPLY"
	default:
		return fmt.Sprintf("PacketType(%d)", byte(t))
	}
}

// StatusType is the u32 status code carried by a Status response.
type StatusType uint32

const (
	StatusOK               StatusType = 0
	StatusEOF              StatusType = 1
	StatusNoSuchFile       StatusType = 2
	StatusPermissionDenied StatusType = 3
	StatusFailure          StatusType = 4
	StatusBadMessage       StatusType = 5
	StatusNoConnection     StatusType = 6
	StatusConnectionLost   StatusType = 7
	StatusOpUnsupported    StatusType = 8
)

func (s StatusType) message() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusEOF:
		return "EOF"
	case StatusNoSuchFile:
		return "No such file"
	case StatusPermissionDenied:
		return "Permission denied"
	case StatusBadMessage:
		return "Bad message"
	case StatusOpUnsupported:
		return "Operation unsupported"
	default:
		return "Failure"
	}
}

// OpenFlags is the pflags bitfield carried by an Open request.
type OpenFlags uint32

const (
	OpenRead     OpenFlags = 0x00000001
	OpenWrite    OpenFlags = 0x00000002
	OpenAppend   OpenFlags = 0x00000004
	OpenCreate   OpenFlags = 0x00000008
	OpenTruncate OpenFlags = 0x00000010
	OpenExclude  OpenFlags = 0x00000020
)

func (f OpenFlags) has(bit OpenFlags) bool { return f&bit != 0 }

// AttrFlag tags which optional fields of a FileAttributes record are
// present on the wire.
type AttrFlag uint32

const (
	AttrSize        AttrFlag = 0x00000001
	AttrUidGid      AttrFlag = 0x00000002
	AttrPermissions AttrFlag = 0x00000004
	AttrACModTime   AttrFlag = 0x00000008
	AttrExtended    AttrFlag = 0x80000000
)

// Packet is the framed unit on the wire: a 32-bit length (covering
// Type and Payload but not itself), a type tag, and the payload.
type Packet struct {
	Type    PacketType
	Payload []byte
}

// ErrNeedMore indicates the supplied bytes do not yet contain a
// complete packet; the caller should read more and retry.
var ErrNeedMore = errors.New("sftpd: need more data")

// HeaderErr wraps a failure to parse the 5-byte length+type header.
// Header errors are fatal for the session: framing has been lost and
// there is no way to resynchronize on the byte stream.
type HeaderErr struct{ Err error }

func (e *HeaderErr) Error() string { return "sftpd: malformed packet header: " + e.Err.Error() }
func (e *HeaderErr) Unwrap() error { return e.Err }

// PayloadErr wraps a failure to parse a packet's payload once its
// length is known. Unlike HeaderErr, this is recoverable: the bytes
// are discarded and a Status(BadMessage) is returned to the client.
type PayloadErr struct {
	Err error
	// ID is the request id read before the parse failure occurred, or
	// 0 if the id itself could not be read.
	ID uint32
}

func (e *PayloadErr) Error() string { return "sftpd: malformed packet payload: " + e.Err.Error() }
func (e *PayloadErr) Unwrap() error { return e.Err }

const packetHeaderSize = 5

// ParsePacketHeader reads the 5-byte length+type header from the
// front of b. It does not consume payload bytes.
func ParsePacketHeader(b []byte) (length uint32, typ PacketType, err error) {
	if len(b) < packetHeaderSize {
		return 0, 0, ErrNeedMore
	}
	length = binary.BigEndian.Uint32(b[0:4])
	if length < 1 {
		return 0, 0, &HeaderErr{errors.Errorf("declared length %d is smaller than the type byte", length)}
	}
	return length, PacketType(b[4]), nil
}

// ParsePacket parses one whole packet from the front of b, returning
// the packet and the number of bytes consumed. It returns ErrNeedMore
// when b does not yet hold a complete packet.
func ParsePacket(b []byte) (Packet, int, error) {
	length, typ, err := ParsePacketHeader(b)
	if err != nil {
		return Packet{}, 0, err
	}
	total := packetHeaderSize + int(length) - 1
	if len(b) < total {
		return Packet{}, 0, ErrNeedMore
	}
	payload := make([]byte, length-1)
	copy(payload, b[packetHeaderSize:total])
	return Packet{Type: typ, Payload: payload}, total, nil
}

// Serialize frames a packet type and payload: a 4-byte big-endian
// length (1 + len(payload)) followed by the type byte and payload.
func Serialize(typ PacketType, payload []byte) []byte {
	out := make([]byte, packetHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[0:4], uint32(1+len(payload)))
	out[4] = byte(typ)
	copy(out[packetHeaderSize:], payload)
	return out
}
