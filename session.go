package sftpd

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/taruti/bytepool"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"
)

var sftpSubsystem = []byte{0, 0, 0, 4, 115, 102, 116, 112}

// IsSftpRequest checks whether a given ssh.Request is for sftp.
func IsSftpRequest(req *ssh.Request) bool {
	return req.Type == "subsystem" && bytes.Equal(sftpSubsystem, req.Payload)
}

// readBufferSize bounds a single Channel.Read call; packets may still
// straddle reads of this size, which the Reassembler handles.
const readBufferSize = 64 * 1024

// ServeChannel serves one SFTP session over c against fs. Every
// non-Init request is dispatched on its own goroutine so backend I/O
// against distinct handles proceeds in parallel, while a single
// writer goroutine drains a channel of encoded responses onto c in
// the order each request's goroutine finished — preserving in-order
// delivery without requiring in-order completion.
func ServeChannel(c ssh.Channel, fs FileSystem, log Logger) error {
	defer func() { _ = c.Close() }()
	if log == nil {
		log = NopLogger
	}

	disp := NewDispatcher(fs, log)
	defer disp.Close()

	responses := make(chan []byte, 64)
	var writer errgroup.Group
	writer.Go(func() error {
		for frame := range responses {
			if _, err := c.Write(frame); err != nil {
				return err
			}
		}
		return nil
	})

	var inflight sync.WaitGroup
	var reassembler Reassembler
	initialized := false
	buf := make([]byte, readBufferSize)
	var readErr error

readLoop:
	for {
		n, err := c.Read(buf)
		if n > 0 {
			packets, ferr := reassembler.Feed(buf[:n])
			for _, pkt := range packets {
				if !initialized {
					if pkt.Type != PktInit {
						readErr = errors.New("sftpd: session did not open with Init")
						break readLoop
					}
					var req InitRequest
					if uerr := req.UnmarshalPayload(pkt.Payload); uerr != nil {
						readErr = uerr
						break readLoop
					}
					log.Debug("session init", logrus.Fields{"clientVersion": req.Version})
					responses <- Encode(VersionResponse{Version: 3})
					initialized = true
					continue
				}
				pkt := pkt
				inflight.Add(1)
				go func() {
					defer inflight.Done()
					responses <- encodeAndRelease(handlePacket(disp, pkt))
				}()
			}
			if ferr != nil {
				readErr = ferr
				break readLoop
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break readLoop
		}
	}

	inflight.Wait()
	close(responses)
	if werr := writer.Wait(); werr != nil && readErr == nil {
		readErr = werr
	}
	return readErr
}

// handlePacket decodes one packet's payload and dispatches it, or
// produces a BadMessage status if the payload itself doesn't parse.
// Response packet types are never accepted as requests; decodeRequest
// already rejects them.
func handlePacket(disp *Dispatcher, pkt Packet) payloadMarshaler {
	req, err := decodeRequest(pkt.Type, pkt.Payload)
	if err != nil {
		return newStatus(leadingID(pkt.Payload), StatusBadMessage, "")
	}
	return disp.Dispatch(req)
}

// encodeAndRelease marshals resp to its wire frame and returns any
// pooled read buffer it carries, mirroring bytepool's alloc-until-sent
// lifecycle: the buffer is only safe to free once MarshalPayload has
// copied its bytes into the frame.
func encodeAndRelease(resp payloadMarshaler) []byte {
	frame := Encode(resp)
	if data, ok := resp.(DataResponse); ok {
		bytepool.Free(data.Data)
	}
	return frame
}

// leadingID best-effort reads the request id that precedes every
// request payload except Init, for use in BadMessage responses to a
// payload that failed to parse past that point.
func leadingID(payload []byte) uint32 {
	if len(payload) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(payload[0:4])
}
