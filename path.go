package ffs

import "strings"

// splitPath splits an absolute path like "/a/b/c" into its components,
// rejecting relative paths and empty components (spec.md §4.F).
func splitPath(p string) ([]string, error) {
	if len(p) == 0 || p[0] != '/' {
		return nil, ErrInvalid
	}
	if p == "/" {
		return nil, nil
	}
	parts := strings.Split(p[1:], "/")
	for _, c := range parts {
		if c == "" {
			return nil, ErrInvalid
		}
	}
	return parts, nil
}

// resolve walks components against the in-memory graph starting at root,
// returning the terminal inode entry.
func (fs *FileSystem) resolve(path string) (*inodeEntry, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	cur := fs.root
	for _, part := range parts {
		if !cur.isDir {
			return nil, ErrNotDirectory
		}
		next, err := fs.lookupChild(cur, part)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// resolveParent resolves all but the last component of path, returning the
// parent directory entry and the final component name.
func (fs *FileSystem) resolveParent(path string) (*inodeEntry, string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		// path is "/": has no parent
		return nil, "", ErrInvalid
	}
	cur := fs.root
	for _, part := range parts[:len(parts)-1] {
		if !cur.isDir {
			return nil, "", ErrNotDirectory
		}
		next, err := fs.lookupChild(cur, part)
		if err != nil {
			return nil, "", err
		}
		cur = next
	}
	return cur, parts[len(parts)-1], nil
}
