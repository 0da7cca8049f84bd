package sftpd

import (
	"sync"

	"github.com/google/uuid"
)

// OpenFile is a handle-registry entry for an open file: a metadata
// snapshot taken at open time, a current read/write position, and
// the backend's random-access file.
type OpenFile struct {
	mu       sync.Mutex
	Metadata Metadata
	pos      int64
	File     RandomAccessFile
}

// RandomAccessFile is the capability a backend hands back from Open:
// independent positioned reads and writes plus a Close.
type RandomAccessFile interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Close() error
}

// OpenDir is a handle-registry entry for an open directory: the
// fully materialized, ordered listing captured at OpenDir time, plus
// a cursor marking how many entries ReadDir has already returned.
type OpenDir struct {
	mu      sync.Mutex
	Path    string
	Entries []NameEntry
	cursor  int
}

// maxNamesPerPacket bounds how many entries a single ReadDir response
// returns. The listing itself is still held fully in memory; only the
// wire response is chunked.
const maxNamesPerPacket = 255

// Next returns up to maxNamesPerPacket entries starting at the
// cursor and advances it by that many. ok is false once the cursor
// has reached the end of the listing (EOF).
func (d *OpenDir) Next() (entries []NameEntry, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor >= len(d.Entries) {
		return nil, false
	}
	end := d.cursor + maxNamesPerPacket
	if end > len(d.Entries) {
		end = len(d.Entries)
	}
	batch := d.Entries[d.cursor:end]
	d.cursor = end
	return batch, true
}

// WithLock runs fn while holding the file's entry lock, serializing
// concurrent Read/Write/FSetStat against this one handle without
// blocking operations on any other handle.
func (f *OpenFile) WithLock(fn func(pos *int64) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&f.pos)
}

type handleKind int

const (
	kindFile handleKind = iota
	kindDir
)

type registryEntry struct {
	kind handleKind
	file *OpenFile
	dir  *OpenDir
}

// Registry is the per-session table of open file and open directory
// handles, keyed by a randomly generated UUID. A handle lives in
// exactly one of the two logical buckets, modeled here as a single
// map over a tagged variant so Close can look a handle up in one
// step instead of probing two maps.
//
// The map itself is guarded by a RWMutex; once an *OpenFile or
// *OpenDir has been retrieved, further access to its own fields is
// serialized by that entry's own lock, so concurrent operations on
// distinct handles never contend with each other.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]registryEntry
}

// NewRegistry returns an empty handle registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]registryEntry)}
}

// OpenFile registers f under a freshly generated handle and returns
// its dashed-UUID wire form.
func (r *Registry) OpenFile(f *OpenFile) string {
	id := uuid.New()
	r.mu.Lock()
	r.entries[id] = registryEntry{kind: kindFile, file: f}
	r.mu.Unlock()
	return id.String()
}

// OpenDir registers d under a freshly generated handle and returns
// its dashed-UUID wire form.
func (r *Registry) OpenDir(d *OpenDir) string {
	id := uuid.New()
	r.mu.Lock()
	r.entries[id] = registryEntry{kind: kindDir, dir: d}
	r.mu.Unlock()
	return id.String()
}

// GetFile returns the OpenFile registered under handle, if any.
func (r *Registry) GetFile(handle string) (*OpenFile, bool) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.kind != kindFile {
		return nil, false
	}
	return e.file, true
}

// GetDir returns the OpenDir registered under handle, if any.
func (r *Registry) GetDir(handle string) (*OpenDir, bool) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.kind != kindDir {
		return nil, false
	}
	return e.dir, true
}

// Close removes handle from whichever bucket it lives in, closing
// the underlying file if it was one. It reports whether a live entry
// was found.
func (r *Registry) Close(handle string) (bool, error) {
	id, err := uuid.Parse(handle)
	if err != nil {
		return false, nil
	}
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	if !ok {
		return false, nil
	}
	if e.kind == kindFile && e.file.File != nil {
		return true, e.file.File.Close()
	}
	return true, nil
}

// CloseAll drops and closes every entry, used when a session's
// transport goes away.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[uuid.UUID]registryEntry)
	r.mu.Unlock()
	for _, e := range entries {
		if e.kind == kindFile && e.file.File != nil {
			_ = e.file.File.Close()
		}
	}
}

// newOpenFile snapshots metadata at open time and wraps the backend
// file for registration.
func newOpenFile(meta Metadata, f RandomAccessFile) *OpenFile {
	return &OpenFile{Metadata: meta, File: f}
}

// newOpenDir builds an OpenDir entry's entries slice from a backend
// listing, joining longnames under parentPath.
func newOpenDir(parentPath string, children []NamedMetadata) *OpenDir {
	entries := make([]NameEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, NameEntry{
			Filename: c.Name,
			Longname: joinLongname(parentPath, c.Name),
			Attrs:    c.Metadata.ToAttrs(),
		})
	}
	return &OpenDir{Path: parentPath, Entries: entries}
}
