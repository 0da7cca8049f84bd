package sftpd

import (
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// fakeChannel adapts a net.Conn (from net.Pipe) to ssh.Channel, the
// minimum needed to drive ServeChannel without a live SSH connection.
type fakeChannel struct {
	net.Conn
}

func (fakeChannel) CloseWrite() error { return nil }
func (fakeChannel) SendRequest(string, bool, []byte) (bool, error) { return false, nil }
func (fakeChannel) Stderr() io.ReadWriter { return nil }

var _ ssh.Channel = fakeChannel{}

// TestServeChannelInitHandshake checks that the client's Init(version=3)
// draws Version(version=3).
func TestServeChannelInitHandshake(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ServeChannel(fakeChannel{serverSide}, fs, NopLogger) }()

	req := Serialize(PktInit, InitRequest{Version: 3}.MarshalPayload())
	if _, err := clientSide.Write(req); err != nil {
		t.Fatalf("write init: %v", err)
	}

	_ = clientSide.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 64)
	n, err := clientSide.Read(buf)
	if err != nil {
		t.Fatalf("read version response: %v", err)
	}

	pkt, consumed, err := ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if consumed != n {
		t.Fatalf("consumed %d of %d bytes", consumed, n)
	}
	if pkt.Type != PktVersion {
		t.Fatalf("Type = %v, want PktVersion", pkt.Type)
	}
	var resp VersionResponse
	if err := resp.UnmarshalPayload(pkt.Payload); err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if resp.Version != 3 {
		t.Errorf("Version = %d, want 3", resp.Version)
	}

	clientSide.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ServeChannel did not return after client close")
	}
}

// TestServeChannelRejectsNonInitFirst covers §4's requirement that a
// session must open with Init.
func TestServeChannelRejectsNonInitFirst(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ServeChannel(fakeChannel{serverSide}, fs, NopLogger) }()

	req := Serialize(PktMkdir, MkdirRequest{Header: Header{ID: 1}, Path: "a"}.MarshalPayload())
	if _, err := clientSide.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	clientSide.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("ServeChannel returned nil error for a non-Init first packet")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeChannel did not return")
	}
}
