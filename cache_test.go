package ffs

import "testing"

func TestBlockCacheEmptyRange(t *testing.T) {
	c := newBlockCache(DefaultConfig())
	start, end := c.rangeOf(NewID(KindFile, 1))
	if start != 0 || end != 0 {
		t.Fatalf("empty cache range = (%d,%d), want (0,0)", start, end)
	}
}

func TestBlockCacheMergeAdjacent(t *testing.T) {
	c := newBlockCache(DefaultConfig())
	id := NewID(KindFile, 1)
	c.put(id, 0, []byte("abcd"))
	c.put(id, 4, []byte("efgh"))

	start, end := c.rangeOf(id)
	if start != 0 || end != 8 {
		t.Fatalf("range = (%d,%d), want (0,8)", start, end)
	}
	data, ok := c.get(id, 2, 4)
	if !ok || string(data) != "cdef" {
		t.Fatalf("get(2,4) = %q,%v, want \"cdef\",true", data, ok)
	}
}

func TestBlockCacheDisjointReplaces(t *testing.T) {
	c := newBlockCache(DefaultConfig())
	id := NewID(KindFile, 1)
	c.put(id, 0, []byte("abcd"))
	c.put(id, 100, []byte("wxyz"))

	start, end := c.rangeOf(id)
	if start != 100 || end != 104 {
		t.Fatalf("range = (%d,%d), want (100,104)", start, end)
	}
	if _, ok := c.get(id, 0, 4); ok {
		t.Fatalf("stale range still served")
	}
}

func TestBlockCacheInvalidate(t *testing.T) {
	c := newBlockCache(DefaultConfig())
	id := NewID(KindFile, 1)
	c.put(id, 0, []byte("abcd"))
	c.invalidate(id)
	if _, ok := c.get(id, 0, 1); ok {
		t.Fatalf("get after invalidate succeeded")
	}
	start, end := c.rangeOf(id)
	if start != 0 || end != 0 {
		t.Fatalf("range after invalidate = (%d,%d), want (0,0)", start, end)
	}
}

func TestBlockCacheEvictsLRU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumCacheInodes = 1
	c := newBlockCache(cfg)
	id1, id2 := NewID(KindFile, 1), NewID(KindFile, 2)
	c.put(id1, 0, []byte("abcd"))
	c.put(id2, 0, []byte("wxyz"))
	if _, ok := c.get(id1, 0, 4); ok {
		t.Fatalf("id1 should have been evicted")
	}
	if _, ok := c.get(id2, 0, 4); !ok {
		t.Fatalf("id2 should still be cached")
	}
}
