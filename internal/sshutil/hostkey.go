// Package sshutil provides the host key management the SSH transport
// needs to accept connections. Authentication and keypair management
// are not part of the protocol core; this package exists only to make
// cmd/usftpd runnable against a real listener.
package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const hostKeyFile = "host_ed25519"

// LoadOrCreateHostKey reads an ed25519 host key from configDir,
// generating and persisting one on first run. configDir is created if
// missing.
func LoadOrCreateHostKey(configDir string) (ssh.Signer, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "sshutil: create config dir")
	}
	path := filepath.Join(configDir, hostKeyFile)

	raw, err := os.ReadFile(path)
	if err == nil {
		signer, perr := ssh.ParsePrivateKey(raw)
		if perr != nil {
			return nil, errors.Wrap(perr, "sshutil: parse host key")
		}
		return signer, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "sshutil: read host key")
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "sshutil: generate host key")
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, errors.Wrap(err, "sshutil: build signer")
	}

	block, err := ssh.MarshalPrivateKey(priv, "usftpd host key")
	if err != nil {
		return nil, errors.Wrap(err, "sshutil: marshal host key")
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, errors.Wrap(err, "sshutil: persist host key")
	}
	return signer, nil
}
