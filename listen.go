package sftpd

import (
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

func fieldsFor(err error) logrus.Fields {
	return logrus.Fields{"err": err}
}

// Config is the configuration struct for the high level API.
type Config struct {
	// ServerConfig should be initialized properly with
	// e.g. PasswordCallback and AddHostKey
	ssh.ServerConfig
	// HostPort specifies [host]:port to listen on, e.g. ":2022".
	HostPort string
	// Log receives session and connection lifecycle events. A nil
	// Log falls back to NopLogger.
	Log Logger
}

// SftpDriver resolves the FileSystem backend for a given
// authenticated connection and owns its lifecycle.
type SftpDriver interface {
	GetConfig() *Config
	GetFileSystem(sc *ssh.ServerConn) (FileSystem, error)
	Close()
}

// SftpServer is an optional standalone TCP listener; it is not part
// of the protocol core but wires it to a real network listener.
type SftpServer struct {
	readyChan chan error
	connChan  chan net.Listener
	driver    SftpDriver
}

// NewSftpServer inits a SFTP Server.
func NewSftpServer(driver SftpDriver) *SftpServer {
	return &SftpServer{
		readyChan: make(chan error, 1),
		connChan:  make(chan net.Listener, 1),
		driver:    driver,
	}
}

// RunServer runs the server using the high level API.
func (s *SftpServer) RunServer() error {
	e := runServer(s)
	if e != nil {
		s.logger().Error("sftpd server failed", fieldsFor(e))
	}
	return e
}

func runServer(server *SftpServer) error {
	listener, e := net.Listen("tcp", server.driver.GetConfig().HostPort)
	server.readyChan <- e
	close(server.readyChan)
	server.connChan <- listener
	close(server.connChan)
	if e != nil {
		return e
	}

	for {
		conn, e := listener.Accept()
		if e != nil {
			return e
		}
		go handleConn(conn, server)
	}
}

func handleConn(conn net.Conn, server *SftpServer) {
	defer func() { _ = conn.Close() }()
	e := doHandleConn(conn, server)
	if e != nil {
		server.logger().Error("sftpd connection error", fieldsFor(e))
	}
}

func doHandleConn(conn net.Conn, server *SftpServer) error {
	sc, chans, reqs, e := ssh.NewServerConn(conn, &server.driver.GetConfig().ServerConfig)
	if e != nil {
		return e
	}
	defer func() { _ = sc.Close() }()

	go discardRequests(server, reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return err
		}

		go func(in <-chan *ssh.Request) {
			for req := range in {
				ok := false
				if IsSftpRequest(req) {
					ok = true
					go func() {
						fs, e := server.driver.GetFileSystem(sc)
						if e == nil {
							e = ServeChannel(channel, fs, server.logger())
						}
						if e != nil {
							server.logger().Error("sftpd servechannel failed", fieldsFor(e))
						}
					}()
				}
				_ = req.Reply(ok, nil)
			}
		}(requests)
	}
	return nil
}

func discardRequests(s *SftpServer, in <-chan *ssh.Request) {
	for req := range in {
		s.logger().Debug("sftpd discarding ssh request", logrus.Fields{"type": req.Type})
		if req.WantReply {
			_ = req.Reply(false, nil)
		}
	}
}

// BlockTillReady blocks until the listener is ready to accept
// connections. Returns an error if listening failed.
func (s *SftpServer) BlockTillReady() error {
	err := <-s.readyChan
	return err
}

// Close shuts down the listener and the driver behind it.
func (s *SftpServer) Close() error {
	for ch := range s.connChan {
		_ = ch.Close()
	}
	s.driver.Close()
	return nil
}

func (s *SftpServer) logger() Logger {
	if cfg := s.driver.GetConfig(); cfg != nil && cfg.Log != nil {
		return cfg.Log
	}
	return NopLogger
}
