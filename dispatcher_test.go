package sftpd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}
	return NewDispatcher(fs, NopLogger)
}

// TestMkdirOpenDirReadDirScenario: MkDir "a", then OpenDir/ReadDir
// over the empty root sees exactly that one entry with its directory
// bit set.
func TestMkdirOpenDirReadDirScenario(t *testing.T) {
	d := newTestDispatcher(t)

	resp := d.mkdir(&MkdirRequest{Header: Header{ID: 7}, Path: "a"})
	status, ok := resp.(StatusResponse)
	if !ok || status.Status != StatusOK {
		t.Fatalf("mkdir response = %+v, want Status OK", resp)
	}

	openResp := d.openDir(&OpenDirRequest{pathRequest{Header{ID: 8}, ""}})
	handleResp, ok := openResp.(HandleResponse)
	if !ok {
		t.Fatalf("openDir response = %+v, want HandleResponse", openResp)
	}

	readResp := d.readDir(&ReadDirRequest{handleRequest{Header{ID: 9}, handleResp.Handle}})
	nameResp, ok := readResp.(NameResponse)
	if !ok {
		t.Fatalf("readDir response = %+v, want NameResponse", readResp)
	}
	if len(nameResp.Files) != 1 || nameResp.Files[0].Filename != "a" {
		t.Fatalf("Files = %+v, want exactly one entry named \"a\"", nameResp.Files)
	}
	if nameResp.Files[0].Attrs.Permissions&directoryTypeBit == 0 {
		t.Error("entry \"a\" missing directory type bit")
	}

	eofResp := d.readDir(&ReadDirRequest{handleRequest{Header{ID: 10}, handleResp.Handle}})
	eofStatus, ok := eofResp.(StatusResponse)
	if !ok || eofStatus.Status != StatusEOF {
		t.Fatalf("second readDir = %+v, want Status EOF", eofResp)
	}
}

// TestRemoveMissingScenario checks that removing a nonexistent path
// returns Status Failure with a message describing the delete.
func TestRemoveMissingScenario(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.remove(&RemoveRequest{pathRequest{Header{ID: 9}, "missing"}})
	status, ok := resp.(StatusResponse)
	if !ok || status.Status != StatusFailure {
		t.Fatalf("remove(missing) = %+v, want Status Failure", resp)
	}
	if !strings.Contains(status.Message, "delete") {
		t.Errorf("Message = %q, want it to contain %q", status.Message, "delete")
	}
}

// TestWriteReadPastEOFScenario checks that a write followed by a read
// returns the written bytes, and that reading past EOF yields
// Status(EOF) rather than a zero-length Data response.
func TestWriteReadPastEOFScenario(t *testing.T) {
	d := newTestDispatcher(t)

	openResp := d.open(&OpenRequest{Header: Header{ID: 1}, Path: "f", Pflags: OpenRead | OpenWrite | OpenCreate})
	handleResp, ok := openResp.(HandleResponse)
	if !ok {
		t.Fatalf("open response = %+v, want HandleResponse", openResp)
	}

	writeResp := d.write(&WriteRequest{Header: Header{ID: 10}, Handle: handleResp.Handle, Offset: 0, Data: []byte("hello")})
	status, ok := writeResp.(StatusResponse)
	if !ok || status.Status != StatusOK {
		t.Fatalf("write response = %+v, want Status OK", writeResp)
	}

	readResp := d.read(&ReadRequest{Header: Header{ID: 11}, Handle: handleResp.Handle, Offset: 0, Len: 5})
	dataResp, ok := readResp.(DataResponse)
	if !ok || string(dataResp.Data) != "hello" {
		t.Fatalf("read response = %+v, want Data \"hello\"", readResp)
	}

	eofResp := d.read(&ReadRequest{Header: Header{ID: 12}, Handle: handleResp.Handle, Offset: 5, Len: 1})
	eofStatus, ok := eofResp.(StatusResponse)
	if !ok || eofStatus.Status != StatusEOF {
		t.Fatalf("read-past-EOF response = %+v, want Status EOF", eofResp)
	}
}

// TestCloseThenReadReturnsNoSuchFile checks that operations against a
// handle fail with Status NoSuchFile once that handle has been closed.
func TestCloseThenReadReturnsNoSuchFile(t *testing.T) {
	d := newTestDispatcher(t)
	openResp := d.open(&OpenRequest{Header: Header{ID: 1}, Path: "f", Pflags: OpenRead | OpenWrite | OpenCreate})
	handleResp := openResp.(HandleResponse)

	closeResp := d.close(&CloseRequest{Header: Header{ID: 2}, Handle: handleResp.Handle})
	if status, ok := closeResp.(StatusResponse); !ok || status.Status != StatusOK {
		t.Fatalf("close response = %+v, want Status OK", closeResp)
	}

	readResp := d.read(&ReadRequest{Header: Header{ID: 3}, Handle: handleResp.Handle, Offset: 0, Len: 1})
	if status, ok := readResp.(StatusResponse); !ok || status.Status != StatusNoSuchFile {
		t.Fatalf("read after close = %+v, want Status NoSuchFile", readResp)
	}

	fstatResp := d.fstat(&FstatRequest{handleRequest{Header{ID: 4}, handleResp.Handle}})
	if status, ok := fstatResp.(StatusResponse); !ok || status.Status != StatusNoSuchFile {
		t.Fatalf("fstat after close = %+v, want Status NoSuchFile", fstatResp)
	}
}

// TestRealPathScenario checks that RealPath normalizes "./x/../y" to "/y"
// for an existing file "y".
func TestRealPathScenario(t *testing.T) {
	d := newTestDispatcher(t)
	if err := os.WriteFile(filepath.Join(d.fs.(*DirFS).root, "y"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	resp := d.realPath(&RealPathRequest{pathRequest{Header{ID: 13}, "./x/../y"}})
	nameResp, ok := resp.(NameResponse)
	if !ok || len(nameResp.Files) != 1 {
		t.Fatalf("realPath response = %+v, want one NameEntry", resp)
	}
	if nameResp.Files[0].Filename != "/y" {
		t.Errorf("Filename = %q, want %q", nameResp.Files[0].Filename, "/y")
	}
}

// TestPathJailRejectsEscape checks the dispatcher's error-mapping
// side: a ".."-escaping path maps to Status(Failure) with an "invalid
// path" message.
func TestPathJailRejectsEscape(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.realPath(&RealPathRequest{pathRequest{Header{ID: 1}, "../../etc/passwd"}})
	status, ok := resp.(StatusResponse)
	if !ok || status.Status != StatusFailure {
		t.Fatalf("realPath(escape) = %+v, want Status Failure", resp)
	}
	if status.Message != "invalid path" {
		t.Errorf("Message = %q, want %q", status.Message, "invalid path")
	}
}

// TestStatDirectoryTypeBit checks that Stat of a directory sets the
// S_IFDIR bit in Permissions.
func TestStatDirectoryTypeBit(t *testing.T) {
	fs, err := NewDirFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewDirFS: %v", err)
	}
	d := NewDispatcher(fs, NopLogger)
	if err := os.Mkdir(filepath.Join(fs.root, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	resp := d.stat(Header{ID: 1}, "sub", true)
	attrsResp, ok := resp.(AttrsResponse)
	if !ok {
		t.Fatalf("stat response = %+v, want AttrsResponse", resp)
	}
	if attrsResp.Attrs.Permissions&directoryTypeBit == 0 {
		t.Error("directory Stat missing S_IFDIR bit")
	}
}

func TestUnsupportedOps(t *testing.T) {
	d := newTestDispatcher(t)
	for _, req := range []Message{
		&ReadLinkRequest{pathRequest{Header{ID: 1}, "a"}},
		&SymlinkRequest{Header: Header{ID: 2}, LinkPath: "a", TargetPath: "b"},
		&ExtendedRequest{Header: Header{ID: 3}, Request: "foo@bar"},
	} {
		resp := d.Dispatch(req)
		status, ok := resp.(StatusResponse)
		if !ok || status.Status != StatusOpUnsupported {
			t.Errorf("%T: got %+v, want Status OpUnsupported", req, resp)
		}
	}
}
