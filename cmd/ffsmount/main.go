// Command ffsmount mounts a formatted FFS image read-write on the host via
// FUSE, so a flash image can be inspected and edited with ordinary POSIX
// tools during development (see SPEC_FULL.md DOMAIN STACK). It is a thin
// adapter: every FUSE callback translates directly into a §4.G File API
// call.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/nffs/ffs"
	"github.com/nffs/ffs/internal/flashfile"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: ffsmount <image> <mountpoint>\n")
		os.Exit(1)
	}
	image, mountpoint := os.Args[1], os.Args[2]

	n := 4
	size := uint32(65536)
	areas := make([]ffs.AreaDesc, n)
	for i := range areas {
		areas[i] = ffs.AreaDesc{Offset: uint32(i) * size, Length: size}
	}

	drv, err := flashfile.Open(image, areas)
	if err != nil {
		log.Fatalf("open %s: %s", image, err)
	}
	defer drv.Close()

	fsys, err := ffs.Detect(drv, ffs.DefaultConfig())
	if err != nil {
		log.Fatalf("detect %s: %s", image, err)
	}

	root := &node{fsys: fsys, path: "/"}
	server, err := fs.Mount(mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{Debug: false},
	})
	if err != nil {
		log.Fatalf("mount: %s", err)
	}
	log.Printf("ffsmount: %s mounted at %s", image, mountpoint)
	server.Wait()
}

// node adapts one ffs.FileSystem path to a go-fuse inode.
type node struct {
	fs.Inode
	fsys *ffs.FileSystem
	path string
}

var _ fs.NodeLookuper = (*node)(nil)
var _ fs.NodeReaddirer = (*node)(nil)
var _ fs.NodeGetattrer = (*node)(nil)
var _ fs.NodeOpener = (*node)(nil)
var _ fs.NodeMkdirer = (*node)(nil)
var _ fs.NodeUnlinker = (*node)(nil)
var _ fs.NodeCreater = (*node)(nil)

func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func (n *node) statToAttr(st ffs.DirEntry, out *fuse.Attr) {
	out.Mode = 0o644
	if st.IsDir {
		out.Mode = syscall.S_IFDIR | 0o755
	} else {
		out.Mode |= syscall.S_IFREG
	}
	out.Size = uint64(st.Size)
}

func (n *node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.fsys.Stat(n.path)
	if err != nil {
		return toErrno(err)
	}
	n.statToAttr(st, &out.Attr)
	return 0
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	cp := childPath(n.path, name)
	st, err := n.fsys.Stat(cp)
	if err != nil {
		return nil, toErrno(err)
	}
	n.statToAttr(st, &out.Attr)
	child := &node{fsys: n.fsys, path: cp}
	mode := uint32(syscall.S_IFREG)
	if st.IsDir {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
}

func (n *node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries, err := n.fsys.Readdir(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(syscall.S_IFREG)
		if e.IsDir {
			mode = syscall.S_IFDIR
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(list), 0
}

func (n *node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	access := ffs.Read
	switch {
	case flags&syscall.O_RDWR != 0:
		access = ffs.Read | ffs.Write
	case flags&syscall.O_WRONLY != 0:
		access = ffs.Write
	}
	if flags&syscall.O_APPEND != 0 {
		access |= ffs.Append
	}
	if flags&syscall.O_TRUNC != 0 {
		access |= ffs.Truncate
	}
	f, err := n.fsys.Open(n.path, access)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &fileHandle{f: f}, fuse.FOPEN_DIRECT_IO, 0
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	cp := childPath(n.path, name)
	f, err := n.fsys.Open(cp, ffs.Read|ffs.Write)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}
	st, _ := n.fsys.Stat(cp)
	n.statToAttr(st, &out.Attr)
	child := &node{fsys: n.fsys, path: cp}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
	return inode, &fileHandle{f: f}, 0, 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	cp := childPath(n.path, name)
	if err := n.fsys.Mkdir(cp); err != nil {
		return nil, toErrno(err)
	}
	st, _ := n.fsys.Stat(cp)
	n.statToAttr(st, &out.Attr)
	child := &node{fsys: n.fsys, path: cp}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	cp := childPath(n.path, name)
	if err := n.fsys.Unlink(cp); err != nil {
		return toErrno(err)
	}
	return 0
}

// fileHandle adapts an open *ffs.File to go-fuse's FileHandle contract.
type fileHandle struct {
	f *ffs.File
}

var _ fs.FileReader = (*fileHandle)(nil)
var _ fs.FileWriter = (*fileHandle)(nil)
var _ fs.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if err := h.f.Seek(off); err != nil {
		return nil, toErrno(err)
	}
	n, err := h.f.Read(dest)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	if err := h.f.Seek(off); err != nil {
		return 0, toErrno(err)
	}
	n, err := h.f.Write(data)
	if err != nil {
		return 0, toErrno(err)
	}
	return uint32(n), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.f.Close()
	return 0
}

func toErrno(err error) syscall.Errno {
	switch err {
	case ffs.ErrNotExist:
		return syscall.ENOENT
	case ffs.ErrExist:
		return syscall.EEXIST
	case ffs.ErrNotDirectory:
		return syscall.ENOTDIR
	case ffs.ErrIsDirectory:
		return syscall.EISDIR
	case ffs.ErrNoSpace:
		return syscall.ENOSPC
	case ffs.ErrNoMem:
		return syscall.ENOMEM
	case ffs.ErrInvalid:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
