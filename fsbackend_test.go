package sftpd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirFSMkdirListRemove(t *testing.T) {
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}

	if err := fs.Mkdir("sub"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.root, "sub", "file.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	children, err := fs.List("sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(children) != 1 || children[0].Name != "file.txt" {
		t.Fatalf("List = %+v, want one entry \"file.txt\"", children)
	}

	if err := fs.DeleteFile("sub/file.txt"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if err := fs.Rmdir("sub"); err != nil {
		t.Fatalf("Rmdir: %v", err)
	}
}

func TestDirFSRenameWithinRoot(t *testing.T) {
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}
	if err := os.WriteFile(filepath.Join(fs.root, "a"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := fs.Rename("a", "b"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.root, "b")); err != nil {
		t.Fatalf("renamed file not found: %v", err)
	}
}

func TestDirFSNormalizePathRejectsEscape(t *testing.T) {
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}
	if _, err := fs.NormalizePath("../escape"); err == nil {
		t.Error("NormalizePath(\"../escape\") = nil error, want ErrInvalidPath")
	}
	got, err := fs.NormalizePath("a/../b")
	if err != nil {
		t.Fatalf("NormalizePath: %v", err)
	}
	if got != "/b" {
		t.Errorf("NormalizePath(\"a/../b\") = %q, want \"/b\"", got)
	}
}

func TestDirFSSetMetadataPermissions(t *testing.T) {
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}
	path := filepath.Join(fs.root, "f")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	perm := uint32(0o600)
	if err := fs.SetMetadata("f", nil, &perm, nil); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	meta, err := fs.Metadata("f", true)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.Permissions&0o777 != 0o600 {
		t.Errorf("Permissions = %o, want 0600", meta.Permissions&0o777)
	}
}
