package ffs

// area tracks one flash area's runtime state: its id (NoneArea while it is
// the scratch), the GC sequence number used to pick the next GC victim, the
// write cursor, and a running count of bytes written since the area was
// last reset (nothing reads it — GC always walks the in-memory graph, never
// a byte-accounting heuristic).
type area struct {
	id        uint32
	gcSeq     uint8
	length    uint32
	cursor    uint32
	liveBytes uint32
}

func (a *area) free() uint32 {
	return a.length - a.cursor
}

// areaManager owns the area table in offset order and the index of the
// current scratch area. Allocation always targets the current active area
// (areas[active]); on overflow it looks for the next non-scratch area with
// room before giving up with ErrNoSpace, which the caller turns into a GC
// attempt (spec.md §4.B, §7).
type areaManager struct {
	areas  []*area
	active int // index into areas of the area new records are appended to
	scratch int // index into areas of the current scratch area
}

func newAreaManager(areas []*area, scratch int) *areaManager {
	m := &areaManager{areas: areas, scratch: scratch}
	m.active = m.pickActive()
	return m
}

// pickActive finds the first non-scratch area with free space, preferring
// to keep appending to the same area the previous allocation used.
func (m *areaManager) pickActive() int {
	if m.active != m.scratch && m.active < len(m.areas) && m.areas[m.active].free() > 0 {
		return m.active
	}
	for i, a := range m.areas {
		if i == m.scratch {
			continue
		}
		if a.free() > 0 {
			return i
		}
	}
	return -1
}

// allocate reserves size bytes in the active area and returns its index and
// offset. It never splits a record across areas.
func (m *areaManager) allocate(size uint32) (int, uint32, error) {
	idx := m.pickActive()
	if idx < 0 {
		return 0, 0, ErrNoSpace
	}
	a := m.areas[idx]
	if a.free() < size {
		// try any other non-scratch area with room
		for i, cand := range m.areas {
			if i == m.scratch || i == idx {
				continue
			}
			if cand.free() >= size {
				m.active = i
				off := cand.cursor
				cand.cursor += size
				return i, off, nil
			}
		}
		return 0, 0, ErrNoSpace
	}
	m.active = idx
	off := a.cursor
	a.cursor += size
	return idx, off, nil
}

// markScratch designates area i as scratch (it must already be erased).
func (m *areaManager) markScratch(i int) {
	m.scratch = i
	m.areas[i].id = NoneArea
	m.areas[i].cursor = areaHeaderSize
	m.areas[i].liveBytes = 0
}

// sourceForGC picks the GC victim: the non-scratch area with the oldest
// gc sequence number (oldest data), ties broken by lowest index for
// determinism (spec.md §4.I step 1). Sequence numbers are compared modulo
// 256, so an area whose 8-bit counter has just wrapped to 0 counts as newer
// than one still at 255.
func (m *areaManager) sourceForGC() int {
	best := -1
	for i, a := range m.areas {
		if i == m.scratch {
			continue
		}
		if best < 0 || int8(a.gcSeq-m.areas[best].gcSeq) < 0 {
			best = i
		}
	}
	return best
}
