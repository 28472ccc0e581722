package ffs

// hashEntry is the in-memory record referencing a flash location for a
// given ID (spec.md §3). NoneLocation marks a soft-deleted entry retained
// only so the ID isn't reused while something might still reference it.
type hashEntry struct {
	id       ID
	loc      location
	next     *hashEntry // collision chain within its bucket
	bucketIx int

	// payload is one of *inodeEntry or *blockEntry, set by the graph layer.
	// Kept as an interface so the hash table itself stays generic, the way
	// the teacher keeps Superblock's decode generic over field types via
	// reflection in super.go — here we trade reflection for a plain
	// interface since the set of payload types is exactly two.
	payload interface{}
}

// hashIndex is a fixed-size open hash table keyed by ID, sized once at
// construction (spec.md §4.D). Sizing up front and never growing keeps the
// memory footprint predictable on an embedded target.
type hashIndex struct {
	buckets []*hashEntry
	count   int
	cap     int
}

func newHashIndex(slots int) *hashIndex {
	if slots < 1 {
		slots = 1
	}
	return &hashIndex{buckets: make([]*hashEntry, slots), cap: slots}
}

func (h *hashIndex) bucket(id ID) int {
	return int(uint32(id) % uint32(len(h.buckets)))
}

func (h *hashIndex) find(id ID) *hashEntry {
	for e := h.buckets[h.bucket(id)]; e != nil; e = e.next {
		if e.id == id {
			return e
		}
	}
	return nil
}

// insert adds a new entry for id. Returns ErrNoMem if the table is full.
// Duplicate insert of an existing id replaces it in place.
func (h *hashIndex) insert(e *hashEntry) error {
	if existing := h.find(e.id); existing != nil {
		existing.loc = e.loc
		existing.payload = e.payload
		return nil
	}
	if h.count >= h.cap {
		return ErrNoMem
	}
	b := h.bucket(e.id)
	e.bucketIx = b
	e.next = h.buckets[b]
	h.buckets[b] = e
	h.count++
	return nil
}

func (h *hashIndex) remove(id ID) {
	b := h.bucket(id)
	var prev *hashEntry
	for e := h.buckets[b]; e != nil; e = e.next {
		if e.id == id {
			if prev == nil {
				h.buckets[b] = e.next
			} else {
				prev.next = e.next
			}
			h.count--
			return
		}
		prev = e
	}
}

// all performs an in-order sweep over every live entry, used by GC to find
// the records living in its source area.
func (h *hashIndex) all(cb func(*hashEntry)) {
	for _, head := range h.buckets {
		for e := head; e != nil; e = e.next {
			cb(e)
		}
	}
}
