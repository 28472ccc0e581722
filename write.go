package ffs

// fileBlock is one block of a file annotated with its file-offset range,
// used internally while splicing an overwrite (spec.md §4.G).
type fileBlock struct {
	entry *blockEntry
	start int64
	end   int64
}

// orderedBlocks returns file's blocks in file order (first to last) with
// their offset ranges, by walking the in-memory chain from tail to head and
// reversing.
func orderedBlocks(file *inodeEntry) []fileBlock {
	var rev []fileBlock
	end := file.size
	for b := file.lastBlock; b != nil; b = b.prev {
		start := end - int64(b.dataLen)
		rev = append(rev, fileBlock{entry: b, start: start, end: end})
		end = start
	}
	out := make([]fileBlock, len(rev))
	for i, fb := range rev {
		out[len(rev)-1-i] = fb
	}
	return out
}

// Write splits data into blocks of at most BlockMaxDataSize and writes them
// starting at the file's current position. A write that starts before EOF
// overwrites: the affected blocks are replaced with newly appended blocks
// whose prev_block_id chains are rewired around the old ones, preserving
// any untouched tail (spec.md §4.G "Overwrite algorithm"). A write at or
// beyond EOF simply extends the file. In Append mode the position is always
// forced to EOF first, even if the caller seeked in between writes.
func (f *File) Write(data []byte) (int, error) {
	if f.access&(Write|Append) == 0 {
		return 0, ErrInvalid
	}
	if f.inode.isDir {
		return 0, ErrIsDirectory
	}
	if err := f.fs.checkHealthy(); err != nil {
		return 0, err
	}
	if f.access&Append != 0 {
		f.pos = f.inode.size
	}

	pos := f.pos
	blocks := orderedBlocks(f.inode)

	// Find the first block touched by [pos, pos+len(data)); blocks entirely
	// before pos are an untouched prefix left exactly as-is.
	splitIdx := len(blocks)
	for i, b := range blocks {
		if b.end > pos {
			splitIdx = i
			break
		}
	}

	var prefixTail *blockEntry
	var tailRegionStart int64
	if splitIdx == 0 {
		// The first affected block (if any) always starts at file offset 0,
		// so its untouched prefix runs from 0, not from pos.
		tailRegionStart = 0
	} else {
		prefixTail = blocks[splitIdx-1].entry
		tailRegionStart = blocks[splitIdx-1].end
	}
	// tailRegionStart <= pos always (first affected block starts at or
	// before pos); when appending past EOF with no affected blocks,
	// tailRegionStart == pos == file size.

	// Read the original content of the region being rebuilt: from
	// tailRegionStart through file end.
	var original []byte
	if tailRegionStart < f.inode.size {
		var err error
		original, err = f.fs.readRange(f.inode, tailRegionStart, int(f.inode.size-tailRegionStart))
		if err != nil {
			return 0, err
		}
	}

	localPos := pos - tailRegionStart
	newRegion := make([]byte, 0, int64(len(original))+int64(len(data)))
	newRegion = append(newRegion, original[:localPos]...)
	newRegion = append(newRegion, data...)
	tailCut := localPos + int64(len(data))
	if tailCut < int64(len(original)) {
		newRegion = append(newRegion, original[tailCut:]...)
	}

	// Drop the old blocks being replaced (splitIdx..end); they become
	// unreachable and are reclaimed by the next GC of their area.
	for i := splitIdx; i < len(blocks); i++ {
		f.fs.index.remove(blocks[i].entry.id)
	}

	// Re-chunk newRegion into BlockMaxDataSize pieces and write fresh block
	// records chained from prefixTail.
	maxSz := f.fs.cfg.BlockMaxDataSize
	prev := prefixTail
	var prevID ID = NoneID
	if prefixTail != nil {
		prevID = prefixTail.id
	}
	var newTail *blockEntry
	for off := 0; off < len(newRegion); off += maxSz {
		end := off + maxSz
		if end > len(newRegion) {
			end = len(newRegion)
		}
		chunk := newRegion[off:end]
		id := f.fs.allocID(KindBlock)
		rec := blockRecord{ID: id, Seq: 0, InodeID: f.inode.id, PrevBlock: prevID, Data: chunk}
		loc, err := f.fs.writeBlockRecord(rec)
		if err != nil {
			return 0, err
		}
		be := &blockEntry{id: id, loc: loc, inodeID: f.inode.id, dataLen: len(chunk), prev: prev}
		f.fs.index.insert(&hashEntry{id: id, loc: loc, payload: be})
		prev = be
		prevID = id
		newTail = be
	}
	if len(newRegion) == 0 {
		newTail = prefixTail
	}

	f.inode.lastBlock = newTail
	f.inode.size = tailRegionStart + int64(len(newRegion))
	f.fs.cache.invalidate(f.inode.id)

	f.pos = pos + int64(len(data))
	return len(data), nil
}
