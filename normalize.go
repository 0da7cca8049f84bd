package sftpd

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidPath is returned by NormalizePath when the requested path
// lexically escapes above the backend's root.
var ErrInvalidPath = errors.New("sftpd: invalid path")

// normalizePath lexically resolves "." and ".." components in p
// without touching the filesystem, grounded on the "lexiclean" pass
// in original_source/sftp-filesystem/src/filesystem.rs. Any ".."
// that would climb above the root is rejected rather than silently
// clamped, matching that reference's ancestor check.
//
// The result always begins with "/". "a/../b" normalizes to "/b";
// "../b" and "a/../../b" are rejected.
func normalizePath(p string) (string, error) {
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
		case "..":
			if len(stack) == 0 {
				return "", ErrInvalidPath
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/"), nil
}
