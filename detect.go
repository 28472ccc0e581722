package ffs

import (
	"encoding/binary"
	"sort"
)

// Format erases every area, writes fresh headers, designates the last area
// as the initial scratch, and creates the root and lost+found directories
// (spec.md §4.G "format").
func Format(flash Flash, cfg Config) (*FileSystem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := flash.NumAreas()
	if n < 2 {
		return nil, ErrInvalid
	}

	areas := make([]*area, n)
	for i := 0; i < n; i++ {
		if err := flash.Erase(i); err != nil {
			return nil, wrapHW(err)
		}
		areas[i] = &area{length: flash.AreaSize(i), cursor: areaHeaderSize}
	}

	scratchIdx := n - 1
	for i := 0; i < n; i++ {
		id := uint32(i)
		if i == scratchIdx {
			id = NoneArea
		}
		areas[i].id = id
		hdr := areaHeader{id: id, gcSeq: 0}
		if err := flash.WriteAt(i, 0, hdr.encode()); err != nil {
			return nil, wrapHW(err)
		}
	}

	fsys := newFileSystem(flash, cfg)
	fsys.areas = newAreaManager(areas, scratchIdx)

	rootLoc, err := fsys.writeInodeRecord(inodeRecord{ID: RootDirID, Seq: 0, ParentID: RootDirID, Name: ""})
	if err != nil {
		return nil, err
	}
	fsys.root = fsys.upsertInode(RootDirID, rootLoc, 0, true)

	lostLoc, err := fsys.writeInodeRecord(inodeRecord{ID: LostFoundDirID, Seq: 0, ParentID: RootDirID, Name: "lost+found"})
	if err != nil {
		return nil, err
	}
	fsys.lost = fsys.upsertInode(LostFoundDirID, lostLoc, 0, true)
	if err := fsys.addChild(fsys.root, fsys.lost); err != nil {
		return nil, err
	}

	return fsys, nil
}

// tempInode accumulates the latest-known state of one inode id while
// replaying the log, before entries and parent links are materialized.
type tempInode struct {
	id       ID
	loc      location
	seq      uint32
	parentID ID
	deleted  bool
	seen     bool
}

type tempBlock struct {
	id      ID
	inodeID ID
	prev    ID
	dataLen int
	loc     location
}

// Detect reconstructs live state by replaying every non-scratch area's log
// in GC-sequence order, then relocates orphans into lost+found (spec.md
// §4.J). It returns ErrNotFormatted if no area carries a recognizable
// header.
func Detect(flash Flash, cfg Config) (*FileSystem, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := flash.NumAreas()
	if n < 2 {
		return nil, ErrInvalid
	}

	type hdrInfo struct {
		hdr    areaHeader
		erased bool
	}
	headers := make([]hdrInfo, n)
	scratchIdx := -1
	anyDecoded := false

	for i := 0; i < n; i++ {
		raw := make([]byte, areaHeaderSize)
		if err := flash.ReadAt(i, 0, raw); err != nil {
			return nil, wrapHW(err)
		}
		hdr, err := decodeAreaHeader(raw)
		if err != nil {
			headers[i] = hdrInfo{erased: true}
			continue
		}
		anyDecoded = true
		headers[i] = hdrInfo{hdr: hdr}
		if hdr.id == NoneArea && scratchIdx < 0 {
			scratchIdx = i
		}
	}
	if !anyDecoded {
		return nil, ErrNotFormatted
	}
	if scratchIdx < 0 {
		for i, h := range headers {
			if h.erased {
				scratchIdx = i
				break
			}
		}
	}
	if scratchIdx < 0 {
		return nil, ErrCorrupt
	}

	// Interrupted-GC recovery: if the scratch area has any non-erased byte
	// past its header, it's a half-finished compaction copy; wipe it
	// (spec.md §4.J step 6 — source was never erased, so no data is lost).
	scratchLen := flash.AreaSize(scratchIdx)
	if scratchLen > areaHeaderSize {
		tail := make([]byte, scratchLen-areaHeaderSize)
		if err := flash.ReadAt(scratchIdx, areaHeaderSize, tail); err != nil {
			return nil, wrapHW(err)
		}
		dirty := false
		for _, b := range tail {
			if b != magicErased {
				dirty = true
				break
			}
		}
		if dirty {
			if err := flash.Erase(scratchIdx); err != nil {
				return nil, wrapHW(err)
			}
			hdr := areaHeader{id: NoneArea, gcSeq: 0}
			if err := flash.WriteAt(scratchIdx, 0, hdr.encode()); err != nil {
				return nil, wrapHW(err)
			}
			headers[scratchIdx] = hdrInfo{hdr: hdr}
		}
	}

	areas := make([]*area, n)
	for i := 0; i < n; i++ {
		length := flash.AreaSize(i)
		if i == scratchIdx {
			areas[i] = &area{id: NoneArea, length: length, cursor: areaHeaderSize}
			continue
		}
		h := headers[i].hdr
		areas[i] = &area{id: h.id, gcSeq: h.gcSeq, length: length}
	}

	fsys := newFileSystem(flash, cfg)
	fsys.areas = newAreaManager(areas, scratchIdx)

	var order []int
	for i := 0; i < n; i++ {
		if i != scratchIdx {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool { return areas[order[a]].gcSeq < areas[order[b]].gcSeq })

	inodes := make(map[ID]*tempInode)
	var blocks []tempBlock
	tainted := make(map[ID]bool)

	for _, ai := range order {
		length := areas[ai].length
		cursor := uint32(areaHeaderSize)

	scan:
		for cursor < length {
			remaining := length - cursor
			magicBuf := make([]byte, 1)
			if err := fsys.flash.ReadAt(ai, cursor, magicBuf); err != nil {
				return nil, wrapHW(err)
			}
			switch magicBuf[0] {
			case magicInode:
				if remaining < 14 {
					break scan
				}
				hb := make([]byte, 14)
				if err := fsys.flash.ReadAt(ai, cursor, hb); err != nil {
					return nil, wrapHW(err)
				}
				nameLen := int(hb[13])
				total := uint32(14 + nameLen + 4)
				if total > remaining {
					break scan
				}
				full := make([]byte, total)
				if err := fsys.flash.ReadAt(ai, cursor, full); err != nil {
					return nil, wrapHW(err)
				}
				rec, _, err := decodeInodeRecord(full)
				if err == ErrBadCRC {
					cursor += total
					continue
				}
				if err != nil {
					break scan
				}
				applyTempInode(inodes, rec, newLocation(ai, cursor))
				cursor += total

			case magicBlock:
				if remaining < 19 {
					break scan
				}
				hb := make([]byte, 19)
				if err := fsys.flash.ReadAt(ai, cursor, hb); err != nil {
					return nil, wrapHW(err)
				}
				dataLen := int(hb[13]) | int(hb[14])<<8
				total := uint32(19 + dataLen + 4)
				if total > remaining {
					break scan
				}
				full := make([]byte, total)
				if err := fsys.flash.ReadAt(ai, cursor, full); err != nil {
					return nil, wrapHW(err)
				}
				rec, _, err := decodeBlockRecord(full)
				if err == ErrBadCRC {
					// Header fields decode fine even though the CRC over the
					// whole record doesn't match, so the owning inode id is
					// still readable from hb[9:13]. A file that silently lost
					// one of its blocks must not resolve as a valid shorter
					// file (data loss would be invisible); taint the owner so
					// materialize orphans it instead (spec.md §8 scenario 6).
					inodeID := ID(binary.LittleEndian.Uint32(hb[9:13]))
					tainted[inodeID] = true
					cursor += total
					continue
				}
				if err != nil {
					break scan
				}
				blocks = append(blocks, tempBlock{
					id: rec.ID, inodeID: rec.InodeID, prev: rec.PrevBlock,
					dataLen: len(rec.Data), loc: newLocation(ai, cursor),
				})
				cursor += total

			default:
				break scan
			}
		}
		areas[ai].cursor = cursor
	}

	if err := fsys.materialize(inodes, blocks, tainted); err != nil {
		return nil, err
	}

	return fsys, nil
}

func applyTempInode(inodes map[ID]*tempInode, rec inodeRecord, loc location) {
	t, ok := inodes[rec.ID]
	if !ok {
		t = &tempInode{id: rec.ID}
		inodes[rec.ID] = t
	}
	if t.seen && rec.Seq < t.seq {
		return // stale, a later-seq record for this id already applied
	}
	t.seen = true
	t.seq = rec.Seq
	t.loc = loc
	if rec.ParentID == NoneID && rec.ID != RootDirID {
		t.deleted = true
		return
	}
	t.deleted = false
	t.parentID = rec.ParentID
}

// materialize turns replayed temp state into the live graph: it creates
// inodeEntry objects, links parent/child relationships where possible, and
// relocates everything unreachable into lost+found (spec.md §4.J steps 2,5).
func (fs *FileSystem) materialize(inodes map[ID]*tempInode, blocks []tempBlock, tainted map[ID]bool) error {
	entries := make(map[ID]*inodeEntry)

	for id, t := range inodes {
		if t.deleted || !t.seen || tainted[id] {
			continue
		}
		e := &inodeEntry{id: id, loc: t.loc, seq: t.seq, isDir: id.Kind() == KindDirectory}
		entries[id] = e
		fs.index.insert(&hashEntry{id: id, loc: t.loc, payload: e})
		fs.bumpCounter(id)
	}

	root, ok := entries[RootDirID]
	if !ok {
		// Should never happen on a correctly formatted device; synthesize
		// a root so the mount doesn't simply fail closed.
		root = &inodeEntry{id: RootDirID, isDir: true}
		entries[RootDirID] = root
	}
	fs.root = root

	// Iteratively link children whose parent is already resolved.
	linked := map[ID]bool{RootDirID: true}
	progress := true
	for progress {
		progress = false
		for id, e := range entries {
			if linked[id] {
				continue
			}
			t := inodes[id]
			if t == nil {
				continue
			}
			parent, ok := entries[t.parentID]
			if !ok || !linked[t.parentID] {
				continue
			}
			if err := fs.addChild(parent, e); err != nil {
				// name collision during replay: keep the earlier-linked
				// sibling, drop this one to lost+found below.
				continue
			}
			linked[id] = true
			progress = true
		}
	}

	lost, ok := entries[LostFoundDirID]
	if !ok {
		id := LostFoundDirID
		loc, err := fs.writeInodeRecord(inodeRecord{ID: id, Seq: 0, ParentID: RootDirID, Name: "lost+found"})
		if err != nil {
			return err
		}
		lost = fs.upsertInode(id, loc, 0, true)
		if err := fs.addChild(root, lost); err != nil {
			return err
		}
		linked[id] = true
	}
	fs.lost = lost

	// A still-unlinked entry whose parent id never materialized means the
	// parent's own inode record was corrupted or missing, not just this
	// entry's. If that parent id looks like a directory, synthesize a stub
	// for it under lost+found so the former subtree reappears together as
	// "/lost+found/<dir-id>/..." rather than each surviving child scattering
	// in on its own (spec.md §8 scenario 7).
	var missingParents []ID
	seenMissing := make(map[ID]bool)
	for id := range entries {
		if linked[id] || id == RootDirID {
			continue
		}
		t := inodes[id]
		if t == nil {
			continue
		}
		pid := t.parentID
		if _, ok := entries[pid]; ok {
			continue
		}
		if pid.Kind() != KindDirectory || seenMissing[pid] {
			continue
		}
		seenMissing[pid] = true
		missingParents = append(missingParents, pid)
	}
	for _, pid := range missingParents {
		stub := &inodeEntry{id: pid, isDir: true}
		if err := fs.relocateOrphan(stub); err != nil {
			return err
		}
		entries[pid] = stub
		linked[pid] = true
	}

	// Re-run linking now that synthesized stub parents are in place.
	progress = true
	for progress {
		progress = false
		for id, e := range entries {
			if linked[id] {
				continue
			}
			t := inodes[id]
			if t == nil {
				continue
			}
			parent, ok := entries[t.parentID]
			if !ok || !linked[t.parentID] {
				continue
			}
			if err := fs.addChild(parent, e); err != nil {
				continue
			}
			linked[id] = true
			progress = true
		}
	}

	// Anything still unlinked has no recoverable parent at all: reparent
	// directly under lost+found by decimal id (spec.md §4.J step 5).
	for id, e := range entries {
		if linked[id] || id == RootDirID {
			continue
		}
		if err := fs.relocateOrphan(e); err != nil {
			return err
		}
		linked[id] = true
	}

	// Resolve block chains per owning inode.
	byInode := make(map[ID][]tempBlock)
	for _, b := range blocks {
		byInode[b.inodeID] = append(byInode[b.inodeID], b)
	}
	for inodeID, group := range byInode {
		referenced := make(map[ID]bool)
		byID := make(map[ID]tempBlock)
		for _, b := range group {
			byID[b.id] = b
			if b.prev != NoneID {
				referenced[b.prev] = true
			}
		}
		var tip tempBlock
		found := false
		for _, b := range group {
			if !referenced[b.id] {
				tip = b
				found = true
				break
			}
		}
		if !found {
			continue
		}

		var chain []tempBlock
		cur := tip
		for {
			chain = append(chain, cur)
			if cur.prev == NoneID {
				break
			}
			next, ok := byID[cur.prev]
			if !ok {
				break
			}
			cur = next
		}

		owner, ok := entries[inodeID]
		if !ok || owner.isDir {
			// inode never materialized (corrupted/missing record): adopt
			// the orphan block chain as a synthetic file under lost+found.
			owner = &inodeEntry{id: inodeID, isDir: false}
			if err := fs.relocateOrphan(owner); err != nil {
				return err
			}
			entries[inodeID] = owner
		}

		var prev *blockEntry
		var size int64
		// chain is tip-to-head (last-to-first); walk it in reverse to
		// build prev pointers head-to-tail, then size is the running sum.
		for i := len(chain) - 1; i >= 0; i-- {
			b := chain[i]
			be := &blockEntry{id: b.id, loc: b.loc, inodeID: b.inodeID, dataLen: b.dataLen, prev: prev}
			fs.index.insert(&hashEntry{id: b.id, loc: b.loc, payload: be})
			fs.bumpCounter(b.id)
			prev = be
			size += int64(b.dataLen)
		}
		owner.lastBlock = prev
		owner.size = size
	}

	return nil
}

// relocateOrphan writes a fresh inode record reparenting e under
// lost+found with its decimal id as the name, then links it in.
func (fs *FileSystem) relocateOrphan(e *inodeEntry) error {
	name := orphanName(e.id)
	rec := inodeRecord{ID: e.id, Seq: e.seq + 1, ParentID: LostFoundDirID, Name: name}
	loc, err := fs.writeInodeRecord(rec)
	if err != nil {
		return err
	}
	e.loc = loc
	e.seq++
	e.orphan = true
	if he := fs.index.find(e.id); he != nil {
		he.loc = loc
		he.payload = e
	} else {
		fs.index.insert(&hashEntry{id: e.id, loc: loc, payload: e})
	}
	return fs.addChild(fs.lost, e)
}

func orphanName(id ID) string {
	// decimal text of the full 32-bit id, per spec.md §4.J step 5.
	return uitoa(uint32(id))
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
