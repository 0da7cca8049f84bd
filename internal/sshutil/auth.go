package sshutil

import (
	"crypto/subtle"
	"os"

	"golang.org/x/crypto/ssh"
)

// PasswordCallback builds an ssh.ServerConfig password check from
// USFTPD_USER/USFTPD_PASSWORD. If both are unset, any credentials are
// accepted; otherwise the username and password must both match, an
// unset variable matching only an empty value. This exists only so
// cmd/usftpd has something to plug into
// ssh.ServerConfig.PasswordCallback.
func PasswordCallback() func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	wantUser := os.Getenv("USFTPD_USER")
	wantPass := os.Getenv("USFTPD_PASSWORD")

	return func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
		if wantUser == "" && wantPass == "" {
			return nil, nil
		}
		userOK := subtle.ConstantTimeCompare([]byte(conn.User()), []byte(wantUser)) == 1
		passOK := subtle.ConstantTimeCompare(password, []byte(wantPass)) == 1
		if userOK && passOK {
			return nil, nil
		}
		return nil, errAuthFailed
	}
}

var errAuthFailed = authError("sshutil: authentication failed")

type authError string

func (e authError) Error() string { return string(e) }
