package ffs

// DirEntry describes one child of a directory, returned by Readdir.
type DirEntry struct {
	Name  string
	ID    ID
	IsDir bool
	Size  int64
}

// Readdir lists the children of the directory at path, in the same
// byte-lex sorted order the in-memory tree maintains (spec.md §4.E).
func (fs *FileSystem) Readdir(path string) ([]DirEntry, error) {
	dir, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if !dir.isDir {
		return nil, ErrNotDirectory
	}
	var out []DirEntry
	for c := dir.firstChild; c != nil; c = c.nextSibling {
		name, err := fs.name(c)
		if err != nil {
			return nil, err
		}
		out = append(out, DirEntry{Name: name, ID: c.id, IsDir: c.isDir, Size: c.size})
	}
	return out, nil
}

// Stat resolves path and reports its id, directory flag, and size.
func (fs *FileSystem) Stat(path string) (DirEntry, error) {
	e, err := fs.resolve(path)
	if err != nil {
		return DirEntry{}, err
	}
	name, err := fs.name(e)
	if err != nil {
		return DirEntry{}, err
	}
	return DirEntry{Name: name, ID: e.id, IsDir: e.isDir, Size: e.size}, nil
}

// AreaStat reports one area's runtime accounting, used by diagnostic
// tooling (ffscli info) without exposing internal types.
type AreaStat struct {
	Index     int
	ID        uint32
	GCSeq     uint8
	Length    uint32
	Used      uint32
	IsScratch bool
}

// AreaBytes reads the raw, undecoded contents of one area, for field
// diagnostics that need to archive an area before it's erased (spec.md
// §4.I step 4; see internal/snapshot).
func (fs *FileSystem) AreaBytes(idx int) ([]byte, error) {
	if idx < 0 || idx >= len(fs.areas.areas) {
		return nil, ErrInvalid
	}
	buf := make([]byte, fs.areas.areas[idx].length)
	if err := fs.flash.ReadAt(idx, 0, buf); err != nil {
		return nil, wrapHW(err)
	}
	return buf, nil
}

// NextGCArea reports which area GC would pick as its source next, without
// running it, so tooling can snapshot it first (see internal/snapshot).
func (fs *FileSystem) NextGCArea() int {
	return fs.areas.sourceForGC()
}

// Areas reports per-area accounting for diagnostics.
func (fs *FileSystem) Areas() []AreaStat {
	out := make([]AreaStat, len(fs.areas.areas))
	for i, a := range fs.areas.areas {
		out[i] = AreaStat{
			Index: i, ID: a.id, GCSeq: a.gcSeq, Length: a.length,
			Used: a.cursor, IsScratch: i == fs.areas.scratch,
		}
	}
	return out
}
