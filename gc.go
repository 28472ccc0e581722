package ffs

// GC reclaims one area via the scratch rotation scheme (spec.md §4.I). It
// picks the area with the smallest GC sequence number as the source,
// compacts its live records into the current scratch area, then erases the
// source and makes it the new scratch. Advancing every area's sequence
// number by one each time it's chosen spreads erase cycles evenly
// (wear leveling); the 8-bit number wraps, and sourceForGC compares it
// modulo 256 so the rotation stays even across the wrap.
func (fs *FileSystem) GC() error {
	if err := fs.checkHealthy(); err != nil {
		return err
	}
	src := fs.areas.sourceForGC()
	if src < 0 {
		return ErrNoSpace
	}
	return fs.gcArea(src)
}

// GCArea runs GC against a specific area index, for explicit/manual
// requests (spec.md §6 "gc(area|NULL)").
func (fs *FileSystem) GCArea(idx int) error {
	if err := fs.checkHealthy(); err != nil {
		return err
	}
	if idx < 0 || idx >= len(fs.areas.areas) || idx == fs.areas.scratch {
		return ErrInvalid
	}
	return fs.gcArea(idx)
}

func (fs *FileSystem) gcArea(src int) error {
	scratch := fs.areas.scratch
	srcArea := fs.areas.areas[src]
	dstArea := fs.areas.areas[scratch]

	newSeq := srcArea.gcSeq + 1 // uint8 wraps at 256 automatically

	// Write the destination's new header: it is about to take over src's
	// identity.
	hdr := areaHeader{id: srcArea.id, gcSeq: newSeq}
	if err := fs.flash.WriteAt(scratch, 0, hdr.encode()); err != nil {
		fs.healthy = false
		return wrapHW(err)
	}
	dstArea.cursor = areaHeaderSize

	type pending struct {
		he  *hashEntry
		isInode bool
	}
	var toMove []pending
	fs.index.all(func(he *hashEntry) {
		if he.loc == NoneLocation {
			return // soft-deleted, dropped rather than compacted
		}
		if he.loc.area() != src {
			return
		}
		toMove = append(toMove, pending{he: he, isInode: he.id.Kind() != KindBlock})
	})

	// Inodes first, blocks after, per spec.md §4.I step 3.
	for _, p := range toMove {
		if !p.isInode {
			continue
		}
		if err := fs.gcRelocateInode(src, scratch, p.he); err != nil {
			return err
		}
	}
	for _, p := range toMove {
		if p.isInode {
			continue
		}
		if err := fs.gcRelocateBlock(src, scratch, p.he); err != nil {
			return err
		}
	}

	if err := fs.flash.Erase(src); err != nil {
		fs.healthy = false
		return wrapHW(err)
	}
	freshHdr := areaHeader{id: NoneArea, gcSeq: 0}
	if err := fs.flash.WriteAt(src, 0, freshHdr.encode()); err != nil {
		fs.healthy = false
		return wrapHW(err)
	}

	srcArea.id = NoneArea
	srcArea.gcSeq = 0
	srcArea.cursor = areaHeaderSize
	srcArea.liveBytes = 0

	dstArea.id = hdr.id
	dstArea.gcSeq = newSeq

	fs.areas.scratch = src
	fs.areas.active = scratch

	logf("ffs: gc compacted area %d into %d, new seq=%d", src, scratch, newSeq)
	return nil
}

func (fs *FileSystem) gcAppendTo(areaIdx int, buf []byte) (location, error) {
	a := fs.areas.areas[areaIdx]
	if a.free() < uint32(len(buf)) {
		return 0, ErrNoSpace
	}
	off := a.cursor
	if err := fs.flash.WriteAt(areaIdx, off, buf); err != nil {
		fs.healthy = false
		return 0, wrapHW(err)
	}
	a.cursor += uint32(len(buf))
	a.liveBytes += uint32(len(buf))
	return newLocation(areaIdx, off), nil
}

func (fs *FileSystem) gcRelocateInode(src, dst int, he *hashEntry) error {
	rec, err := fs.readInodeRecord(he.loc)
	if err != nil {
		return err
	}
	loc, err := fs.gcAppendTo(dst, rec.encode())
	if err != nil {
		return err
	}
	he.loc = loc
	if e, ok := he.payload.(*inodeEntry); ok {
		e.loc = loc
	}
	return nil
}

func (fs *FileSystem) gcRelocateBlock(src, dst int, he *hashEntry) error {
	data, err := fs.readBlockData(he.loc)
	if err != nil {
		return err
	}
	var inodeID, prevID ID
	if e, ok := he.payload.(*blockEntry); ok {
		inodeID = e.inodeID
		if e.prev != nil {
			prevID = e.prev.id
		} else {
			prevID = NoneID
		}
	}
	rec := blockRecord{ID: he.id, Seq: 0, InodeID: inodeID, PrevBlock: prevID, Data: data}
	loc, err := fs.gcAppendTo(dst, rec.encode())
	if err != nil {
		return err
	}
	he.loc = loc
	if e, ok := he.payload.(*blockEntry); ok {
		e.loc = loc
	}
	return nil
}
