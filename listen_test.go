package sftpd

import (
	"testing"

	"golang.org/x/crypto/ssh"
)

type stubDriver struct {
	cfg *Config
}

func (d *stubDriver) GetConfig() *Config { return d.cfg }
func (d *stubDriver) GetFileSystem(*ssh.ServerConn) (FileSystem, error) {
	return nil, nil
}
func (d *stubDriver) Close() {}

// TestSftpServerBlockTillReadyReportsListenError covers the listener
// wiring without requiring a full SSH handshake: an unbindable address
// surfaces its error through BlockTillReady rather than hanging.
func TestSftpServerBlockTillReadyReportsListenError(t *testing.T) {
	driver := &stubDriver{cfg: &Config{HostPort: "invalid-address"}}
	srv := NewSftpServer(driver)

	go func() { _ = srv.RunServer() }()

	if err := srv.BlockTillReady(); err == nil {
		t.Error("BlockTillReady() = nil, want a listen error for an invalid address")
	}
}

func TestSftpServerLoggerDefaultsToNop(t *testing.T) {
	srv := &SftpServer{driver: &stubDriver{cfg: &Config{}}}
	if srv.logger() != NopLogger {
		t.Error("logger() did not default to NopLogger when Config.Log is nil")
	}
}
