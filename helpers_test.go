package ffs

// memFlash is an in-memory Flash used by the internal (white-box) test
// files, standing in for real NOR flash the way the teacher's mock_test.go
// stands in for a real SquashFS image.
type memFlash struct {
	areas [][]byte
}

func newMemFlash(layout []AreaDesc) *memFlash {
	mf := &memFlash{areas: make([][]byte, len(layout))}
	for i, a := range layout {
		mf.areas[i] = make([]byte, a.Length)
		for j := range mf.areas[i] {
			mf.areas[i][j] = magicErased
		}
	}
	return mf
}

func (m *memFlash) ReadAt(area int, offset uint32, buf []byte) error {
	a := m.areas[area]
	if uint64(offset)+uint64(len(buf)) > uint64(len(a)) {
		return ErrInvalid
	}
	copy(buf, a[offset:])
	return nil
}

func (m *memFlash) WriteAt(area int, offset uint32, buf []byte) error {
	a := m.areas[area]
	if uint64(offset)+uint64(len(buf)) > uint64(len(a)) {
		return ErrInvalid
	}
	copy(a[offset:], buf)
	return nil
}

func (m *memFlash) Erase(area int) error {
	a := m.areas[area]
	for i := range a {
		a[i] = magicErased
	}
	return nil
}

func (m *memFlash) AreaSize(area int) uint32 { return uint32(len(m.areas[area])) }
func (m *memFlash) NumAreas() int            { return len(m.areas) }

func uniformLayout(n int, size uint32) []AreaDesc {
	out := make([]AreaDesc, n)
	for i := range out {
		out[i] = AreaDesc{Offset: uint32(i) * size, Length: size}
	}
	return out
}
