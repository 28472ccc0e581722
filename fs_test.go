package ffs_test

import (
	"path/filepath"
	"testing"

	"github.com/nffs/ffs"
	"github.com/nffs/ffs/internal/flashfile"
)

func openFixture(t *testing.T) *ffs.FileSystem {
	t.Helper()
	areas := []ffs.AreaDesc{
		{Offset: 0, Length: 8192},
		{Offset: 8192, Length: 8192},
		{Offset: 16384, Length: 8192},
		{Offset: 24576, Length: 8192},
	}
	path := filepath.Join(t.TempDir(), "image.bin")
	drv, err := flashfile.Open(path, areas)
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	t.Cleanup(func() { drv.Close() })

	cfg := ffs.DefaultConfig()
	cfg.Areas = areas
	fsys, err := ffs.Format(drv, cfg)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	return fsys
}

func readAll(t *testing.T, f *ffs.File) string {
	t.Helper()
	buf := make([]byte, 64)
	n, _ := f.Read(buf)
	return string(buf[:n])
}

// TestMidFileOverwriteSingleBlock mirrors spec scenario 2: an 8-byte file in
// one block, overwritten 2 bytes starting at offset 3. This black-box test
// checks content and length; the block count is not visible from outside
// the package.
func TestMidFileOverwriteSingleBlock(t *testing.T) {
	fsys := openFixture(t)

	f, err := fsys.Open("/myfile.txt", ffs.Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte("abcdefgh")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Seek(3); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := f.Write([]byte("12")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	f.Close()

	f2, err := fsys.Open("/myfile.txt", ffs.Read)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	if got := readAll(t, f2); got != "abc12fgh" {
		t.Fatalf("content = %q, want %q", got, "abc12fgh")
	}
	if f2.Len() != 8 {
		t.Fatalf("length = %d, want 8", f2.Len())
	}
}

// TestMidFileOverwriteSpansBlocks mirrors spec scenario 3: a file spanning
// two 8-byte blocks, overwritten across the block boundary. Like the test
// above it checks content and length, not the block count.
func TestMidFileOverwriteSpansBlocks(t *testing.T) {
	cfg := ffs.DefaultConfig()
	cfg.BlockMaxDataSize = 8
	areas := []ffs.AreaDesc{
		{Offset: 0, Length: 8192},
		{Offset: 8192, Length: 8192},
		{Offset: 16384, Length: 8192},
		{Offset: 24576, Length: 8192},
	}
	cfg.Areas = areas
	path := filepath.Join(t.TempDir(), "image.bin")
	drv, err := flashfile.Open(path, areas)
	if err != nil {
		t.Fatalf("open driver: %v", err)
	}
	defer drv.Close()
	fsys, err := ffs.Format(drv, cfg)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	f, err := fsys.Open("/big.txt", ffs.Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte("abcdefghijklmnop")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Seek(7); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if _, err := f.Write([]byte("123")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	f.Close()

	f2, err := fsys.Open("/big.txt", ffs.Read)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	want := "abcdefg123klmnop"
	if got := readAll(t, f2); got != want {
		t.Fatalf("content = %q, want %q", got, want)
	}
	if f2.Len() != int64(len(want)) {
		t.Fatalf("length = %d, want %d", f2.Len(), len(want))
	}
}

func TestUnlinkWhileOpenStaysReadableUntilClose(t *testing.T) {
	fsys := openFixture(t)

	f, err := fsys.Open("/gone.txt", ffs.Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte("still here")); err != nil {
		t.Fatalf("write: %v", err)
	}

	f2, err := fsys.Open("/gone.txt", ffs.Read)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}

	if err := fsys.Unlink("/gone.txt"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if _, err := fsys.Stat("/gone.txt"); err != ffs.ErrNotExist {
		t.Fatalf("stat after unlink = %v, want ErrNotExist", err)
	}

	if got := readAll(t, f2); got != "still here" {
		t.Fatalf("read after unlink = %q, want %q", got, "still here")
	}

	f.Close()
	f2.Close()
}

func TestRenameReplacesExistingTarget(t *testing.T) {
	fsys := openFixture(t)

	mk := func(name, content string) {
		f, err := fsys.Open(name, ffs.Write)
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		f.Close()
	}
	mk("/a.txt", "AAA")
	mk("/b.txt", "BBBBB")

	if err := fsys.Rename("/a.txt", "/b.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if _, err := fsys.Stat("/a.txt"); err != ffs.ErrNotExist {
		t.Fatalf("stat /a.txt after rename = %v, want ErrNotExist", err)
	}
	f, err := fsys.Open("/b.txt", ffs.Read)
	if err != nil {
		t.Fatalf("open /b.txt: %v", err)
	}
	defer f.Close()
	if got := readAll(t, f); got != "AAA" {
		t.Fatalf("content after rename = %q, want %q", got, "AAA")
	}
}

func TestRenamePreservesOpenHandle(t *testing.T) {
	fsys := openFixture(t)

	f, err := fsys.Open("/x.txt", ffs.Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := fsys.Rename("/x.txt", "/y.txt"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if _, err := f.Write([]byte("!")); err != nil {
		t.Fatalf("write after rename: %v", err)
	}
	f.Close()

	f2, err := fsys.Open("/y.txt", ffs.Read)
	if err != nil {
		t.Fatalf("open /y.txt: %v", err)
	}
	defer f2.Close()
	if got := readAll(t, f2); got != "hello!" {
		t.Fatalf("content = %q, want %q", got, "hello!")
	}
}
