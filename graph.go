package ffs

import "bytes"

// inodeEntry is the in-memory node for a directory or file (spec.md §3).
// Filenames are never cached here — only the flash location of the current
// inode record, which is re-read whenever a name is needed. This keeps the
// RAM footprint proportional to the number of live entries, not to the sum
// of filename lengths, which is the load-bearing property spec.md §4.E
// calls out.
type inodeEntry struct {
	id     ID
	loc    location
	seq    uint32
	isDir  bool
	refcnt int
	parent *inodeEntry

	// children are kept as a singly-linked, name-sorted list via
	// nextSibling, an intrusive list in the sense of spec.md §9: no
	// separate list-node allocation, the link lives inside the entry.
	firstChild  *inodeEntry
	nextSibling *inodeEntry

	lastBlock *blockEntry // nil for directories or empty files
	size      int64       // sum of live block data lengths, files only
	unlinked  bool        // deletion record written, but refcnt > 0 still
	orphan    bool        // relocated under lost+found during detect
}

// blockEntry is the in-memory node for one data block of a file. prev
// mirrors the on-flash PrevBlockID but as a resolved pointer, so walking the
// chain doesn't re-hit the hash index for every block.
type blockEntry struct {
	id      ID
	loc     location
	inodeID ID
	dataLen int
	prev    *blockEntry
}

// readInodeRecord reads and decodes the inode record currently at loc.
func (fs *FileSystem) readInodeRecord(loc location) (inodeRecord, error) {
	hdr := make([]byte, 14)
	if err := fs.flash.ReadAt(loc.area(), loc.offset(), hdr); err != nil {
		return inodeRecord{}, wrapHW(err)
	}
	if hdr[0] != magicInode {
		return inodeRecord{}, ErrBadMagic
	}
	nameLen := int(hdr[13])
	full := make([]byte, 14+nameLen+4)
	if err := fs.flash.ReadAt(loc.area(), loc.offset(), full); err != nil {
		return inodeRecord{}, wrapHW(err)
	}
	rec, _, err := decodeInodeRecord(full)
	return rec, err
}

// name returns the current filename of an inode entry (root has no name and
// returns "").
func (fs *FileSystem) name(e *inodeEntry) (string, error) {
	if e.id == RootDirID {
		return "", nil
	}
	rec, err := fs.readInodeRecord(e.loc)
	if err != nil {
		return "", err
	}
	return rec.Name, nil
}

// compareName reads e's current name from flash and compares it against
// target byte-lexically, without ever materializing e's name beyond the
// single comparison call (spec.md §4.E "Filename comparison on flash").
func (fs *FileSystem) compareName(e *inodeEntry, target string) (int, error) {
	n, err := fs.name(e)
	if err != nil {
		return 0, err
	}
	return bytes.Compare([]byte(n), []byte(target)), nil
}

// lookupChild walks dir's sorted child list comparing names streamed from
// flash, per spec.md §4.E.
func (fs *FileSystem) lookupChild(dir *inodeEntry, name string) (*inodeEntry, error) {
	if !dir.isDir {
		return nil, ErrNotDirectory
	}
	for c := dir.firstChild; c != nil; c = c.nextSibling {
		cmp, err := fs.compareName(c, name)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			return c, nil
		}
		if cmp > 0 {
			break // list is sorted; no further match possible
		}
	}
	return nil, ErrNotExist
}

// addChild inserts child into dir's sorted list, rejecting duplicate names
// (spec.md invariants: name uniqueness + name ordering).
func (fs *FileSystem) addChild(dir *inodeEntry, child *inodeEntry) error {
	name, err := fs.name(child)
	if err != nil {
		return err
	}

	var prev *inodeEntry
	cur := dir.firstChild
	for cur != nil {
		cmp, err := fs.compareName(cur, name)
		if err != nil {
			return err
		}
		if cmp == 0 {
			return ErrExist
		}
		if cmp > 0 {
			break
		}
		prev, cur = cur, cur.nextSibling
	}

	child.parent = dir
	child.nextSibling = cur
	if prev == nil {
		dir.firstChild = child
	} else {
		prev.nextSibling = child
	}
	return nil
}

// removeChild unlinks child from dir's list. A no-op if not present.
func (fs *FileSystem) removeChild(dir *inodeEntry, child *inodeEntry) {
	var prev *inodeEntry
	for cur := dir.firstChild; cur != nil; cur = cur.nextSibling {
		if cur == child {
			if prev == nil {
				dir.firstChild = cur.nextSibling
			} else {
				prev.nextSibling = cur.nextSibling
			}
			child.nextSibling = nil
			return
		}
		prev = cur
	}
}

func (fs *FileSystem) setParent(child *inodeEntry, newParent *inodeEntry) {
	if child.parent != nil {
		fs.removeChild(child.parent, child)
	}
	child.parent = newParent
}

// readBlockData reads and decodes the block record at loc.
func (fs *FileSystem) readBlockData(loc location) ([]byte, error) {
	hdr := make([]byte, 19)
	if err := fs.flash.ReadAt(loc.area(), loc.offset(), hdr); err != nil {
		return nil, wrapHW(err)
	}
	if hdr[0] != magicBlock {
		return nil, ErrBadMagic
	}
	dataLen := int(hdr[13]) | int(hdr[14])<<8
	full := make([]byte, 19+dataLen+4)
	if err := fs.flash.ReadAt(loc.area(), loc.offset(), full); err != nil {
		return nil, wrapHW(err)
	}
	rec, _, err := decodeBlockRecord(full)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// blockChainLen returns the number of live blocks reachable from file's
// lastBlock, the property exercised heavily by the write/overwrite tests
// (spec.md §4.G "Result").
func blockChainLen(file *inodeEntry) int {
	n := 0
	for b := file.lastBlock; b != nil; b = b.prev {
		n++
	}
	return n
}

// blockWalk walks a file's block chain from last to first, per spec.md §4.E.
func (fs *FileSystem) blockWalk(file *inodeEntry, cb func(b *blockEntry, data []byte) error) error {
	for b := file.lastBlock; b != nil; b = b.prev {
		data, err := fs.readBlockData(b.loc)
		if err != nil {
			return err
		}
		if err := cb(b, data); err != nil {
			return err
		}
	}
	return nil
}

func wrapHW(err error) error {
	if err == nil {
		return nil
	}
	return &hwError{err}
}

type hwError struct{ err error }

func (e *hwError) Error() string { return "ffs: flash i/o error: " + e.err.Error() }
func (e *hwError) Unwrap() error { return ErrHardware }
