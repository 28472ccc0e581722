// Package flashfile implements the ffs.Flash driver contract on top of a
// regular host file, standing in for the raw-NOR-flash driver the spec
// declares out of scope. It exists so tests and the CLI tools can format,
// mount, and power-loss-test an FFS image without real hardware.
package flashfile

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/nffs/ffs"
)

// Driver backs ffs.Flash with a single host file sliced into areas per the
// layout it was opened with. Erase writes 0xFF across the area, matching
// NOR's erased value; WriteAt never checks monotonicity (the host file has
// no NOR write-once-to-zero semantics to enforce).
type Driver struct {
	f     *os.File
	areas []ffs.AreaDesc
}

// Open opens (creating if needed) the backing file at path and locks it
// exclusively via unix.Flock, enforcing the single-writer assumption the
// core package itself doesn't check (spec.md §1 Non-goals: no concurrent
// multi-writer access).
func Open(path string, areas []ffs.AreaDesc) (*Driver, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}

	var total int64
	for _, a := range areas {
		end := int64(a.Offset) + int64(a.Length)
		if end > total {
			total = end
		}
	}
	if fi, err := f.Stat(); err != nil {
		f.Close()
		return nil, err
	} else if fi.Size() < total {
		if err := f.Truncate(total); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &Driver{f: f, areas: append([]ffs.AreaDesc(nil), areas...)}, nil
}

// Close releases the flock and closes the backing file.
func (d *Driver) Close() error {
	unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
	return d.f.Close()
}

func (d *Driver) bounds(area int) (int64, uint32, error) {
	if area < 0 || area >= len(d.areas) {
		return 0, 0, ffs.ErrInvalid
	}
	a := d.areas[area]
	return int64(a.Offset), a.Length, nil
}

// ReadAt implements ffs.Flash.
func (d *Driver) ReadAt(area int, offset uint32, buf []byte) error {
	base, length, err := d.bounds(area)
	if err != nil {
		return err
	}
	if uint64(offset)+uint64(len(buf)) > uint64(length) {
		return ffs.ErrInvalid
	}
	_, err = d.f.ReadAt(buf, base+int64(offset))
	return err
}

// WriteAt implements ffs.Flash. It fsyncs after every write so a killed
// test process can reopen the same file and see exactly what was durably
// written, exercising the power-loss scenarios of spec.md §8.
func (d *Driver) WriteAt(area int, offset uint32, buf []byte) error {
	base, length, err := d.bounds(area)
	if err != nil {
		return err
	}
	if uint64(offset)+uint64(len(buf)) > uint64(length) {
		return ffs.ErrInvalid
	}
	if _, err := d.f.WriteAt(buf, base+int64(offset)); err != nil {
		return err
	}
	return unix.Fsync(int(d.f.Fd()))
}

// Erase implements ffs.Flash by filling the area with the NOR erased value.
func (d *Driver) Erase(area int) error {
	base, length, err := d.bounds(area)
	if err != nil {
		return err
	}
	blank := make([]byte, length)
	for i := range blank {
		blank[i] = 0xFF
	}
	if _, err := d.f.WriteAt(blank, base); err != nil {
		return err
	}
	return unix.Fsync(int(d.f.Fd()))
}

// AreaSize implements ffs.Flash.
func (d *Driver) AreaSize(area int) uint32 {
	if area < 0 || area >= len(d.areas) {
		return 0
	}
	return d.areas[area].Length
}

// NumAreas implements ffs.Flash.
func (d *Driver) NumAreas() int { return len(d.areas) }
