package sftpd

import "strings"

// joinLongname builds the longname field of a Name-packet entry: the
// parent path joined with the entry filename. It is a display string
// only and performs no normalization of its own.
func joinLongname(parentPath, filename string) string {
	if parentPath == "" || parentPath == "/" {
		return "/" + filename
	}
	return strings.TrimRight(parentPath, "/") + "/" + filename
}
