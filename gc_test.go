package ffs

import "testing"

func TestGCPreservesContent(t *testing.T) {
	mf := newMemFlash(uniformLayout(4, 4096))
	fsys, err := Format(mf, DefaultConfig())
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if err := fsys.Mkdir("/mydir"); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	f, err := fsys.Open("/mydir/a.txt", Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.Write([]byte("hello world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	src := fsys.NextGCArea()
	if err := fsys.GCArea(src); err != nil {
		t.Fatalf("gc: %v", err)
	}

	f2, err := fsys.Open("/mydir/a.txt", Read)
	if err != nil {
		t.Fatalf("reopen after gc: %v", err)
	}
	buf := make([]byte, 64)
	n, _ := f2.Read(buf)
	if string(buf[:n]) != "hello world" {
		t.Fatalf("content after gc = %q, want %q", buf[:n], "hello world")
	}
	f2.Close()
}

func TestGCPreservesBlockCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlockMaxDataSize = 8
	mf := newMemFlash(uniformLayout(4, 16384))
	fsys, err := Format(mf, cfg)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	f, err := fsys.Open("/big.bin", Write)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data := make([]byte, 5*cfg.BlockMaxDataSize)
	for i := range data {
		data[i] = byte(i)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := blockChainLen(f.inode); got != 5 {
		t.Fatalf("block count before gc = %d, want 5", got)
	}
	f.Close()

	if err := fsys.GC(); err != nil {
		t.Fatalf("gc: %v", err)
	}

	f2, err := fsys.Open("/big.bin", Read)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := blockChainLen(f2.inode); got != 5 {
		t.Fatalf("block count after gc = %d, want 5", got)
	}
	buf := make([]byte, len(data))
	n, _ := f2.Read(buf)
	if n != len(data) || string(buf) != string(data) {
		t.Fatalf("content mismatch after gc")
	}
	f2.Close()
}

func TestGCSequenceWearLeveling(t *testing.T) {
	mf := newMemFlash(uniformLayout(5, 4096))
	fsys, err := Format(mf, DefaultConfig())
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	// Each GC advances one of the 4 live areas by one step, so every area
	// passes the 8-bit rollover at 256 after 4*256 = 1024 rounds.
	const rounds = 1030
	for i := 0; i < rounds; i++ {
		if err := fsys.GC(); err != nil {
			t.Fatalf("gc round %d: %v", i, err)
		}
	}

	live := 0
	for _, a := range fsys.Areas() {
		if a.IsScratch {
			continue
		}
		live++
		if a.GCSeq > 255 {
			t.Fatalf("area %d gcSeq = %d, 8-bit value must wrap", a.Index, a.GCSeq)
		}
	}

	// Uniform advance: rounds%live areas sit one step ahead of the rest.
	base := uint8(rounds / live)
	var atBase, ahead int
	for _, a := range fsys.Areas() {
		if a.IsScratch {
			continue
		}
		switch a.GCSeq {
		case base:
			atBase++
		case base + 1:
			ahead++
		default:
			t.Fatalf("area %d gcSeq = %d, want %d or %d", a.Index, a.GCSeq, base, base+1)
		}
	}
	if ahead != rounds%live || atBase != live-rounds%live {
		t.Fatalf("gcSeq histogram: %d at %d, %d at %d; want %d and %d", atBase, base, ahead, base+1, live-rounds%live, rounds%live)
	}

	if _, err := fsys.Stat("/"); err != nil {
		t.Fatalf("root unreachable after wear-leveling rounds: %v", err)
	}
}
