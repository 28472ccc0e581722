package ffs

// Unlink removes path from the namespace (spec.md §4.G). For a file, it
// writes a deletion inode record, unlinks it from its parent, and drops the
// chain at last close if no handles remain open. For a directory, children
// are unlinked recursively first, then the directory itself.
func (fs *FileSystem) Unlink(path string) error {
	if err := fs.checkHealthy(); err != nil {
		return err
	}
	entry, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if entry.id == RootDirID || entry.id == LostFoundDirID {
		return ErrInvalid
	}
	return fs.unlinkEntry(entry)
}

func (fs *FileSystem) unlinkEntry(entry *inodeEntry) error {
	if entry.isDir {
		for c := entry.firstChild; c != nil; {
			next := c.nextSibling
			if err := fs.unlinkEntry(c); err != nil {
				return err
			}
			c = next
		}
	}

	rec := inodeRecord{ID: entry.id, Seq: entry.seq + 1, ParentID: NoneID, Name: ""}
	if _, err := fs.writeInodeRecord(rec); err != nil {
		return err
	}
	entry.seq++

	parent := entry.parent
	if parent != nil {
		fs.removeChild(parent, entry)
	}
	fs.cache.invalidate(entry.id)

	if entry.refcnt > 0 {
		entry.unlinked = true
		return nil
	}

	fs.index.remove(entry.id)
	for b := entry.lastBlock; b != nil; {
		fs.index.remove(b.id)
		b = b.prev
	}
	return nil
}

// Rename moves/renames a file or directory. to must be an absolute path
// with a final component whose parent exists; renaming onto an existing
// name replaces it (spec.md §4.G). The id is preserved, so an already-open
// handle to the source stays valid.
func (fs *FileSystem) Rename(from, to string) error {
	if err := fs.checkHealthy(); err != nil {
		return err
	}
	entry, err := fs.resolve(from)
	if err != nil {
		return err
	}
	if entry.id == RootDirID {
		return ErrInvalid
	}
	newParent, newName, err := fs.resolveParent(to)
	if err != nil {
		return err
	}
	if !newParent.isDir {
		return ErrNotDirectory
	}

	if existing, err := fs.lookupChild(newParent, newName); err == nil {
		if existing.id != entry.id {
			if err := fs.unlinkEntry(existing); err != nil {
				return err
			}
		}
	} else if err != ErrNotExist {
		return err
	}

	rec := inodeRecord{ID: entry.id, Seq: entry.seq + 1, ParentID: newParent.id, Name: newName}
	loc, err := fs.writeInodeRecord(rec)
	if err != nil {
		return err
	}
	entry.loc = loc
	entry.seq++

	if entry.parent != nil {
		fs.removeChild(entry.parent, entry)
	}
	if err := fs.addChild(newParent, entry); err != nil {
		return err
	}
	return nil
}
