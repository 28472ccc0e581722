package ffs

import "testing"

func TestAreaManagerAllocate(t *testing.T) {
	areas := []*area{
		{id: 0, length: 100, cursor: areaHeaderSize},
		{id: 1, length: 100, cursor: areaHeaderSize},
		{id: NoneArea, length: 100, cursor: areaHeaderSize},
	}
	m := newAreaManager(areas, 2)

	idx, off, err := m.allocate(20)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if idx == 2 {
		t.Fatalf("allocate picked the scratch area")
	}
	if off != areaHeaderSize {
		t.Fatalf("off = %d, want %d", off, areaHeaderSize)
	}

	// Fill the rest of the active area and confirm it spills to the other
	// non-scratch area rather than touching scratch.
	_, _, err = m.allocate(85)
	if err != nil {
		t.Fatalf("allocate spill: %v", err)
	}
	if m.active == 2 {
		t.Fatalf("allocate spilled into scratch")
	}
}

func TestAreaManagerNoSpace(t *testing.T) {
	areas := []*area{
		{id: 0, length: 50, cursor: areaHeaderSize},
		{id: NoneArea, length: 50, cursor: areaHeaderSize},
	}
	m := newAreaManager(areas, 1)
	if _, _, err := m.allocate(1000); err != ErrNoSpace {
		t.Fatalf("err = %v, want ErrNoSpace", err)
	}
}

func TestSourceForGC(t *testing.T) {
	areas := []*area{
		{id: 0, gcSeq: 5, length: 100},
		{id: 1, gcSeq: 2, length: 100},
		{id: 2, gcSeq: 9, length: 100},
		{id: NoneArea, length: 100},
	}
	m := newAreaManager(areas, 3)
	if got := m.sourceForGC(); got != 1 {
		t.Fatalf("sourceForGC() = %d, want 1 (lowest gcSeq)", got)
	}
}
