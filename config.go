package ffs

// AreaDesc describes one flash area a FileSystem is given at Format/Detect
// time: a byte offset and length, both required to be erase-block aligned by
// the caller (the filesystem never checks flash geometry itself — that is
// the raw-flash driver's job). The caller passes a slice of these; unlike
// the C original's zero-length-terminated array, Go just uses len().
type AreaDesc struct {
	Offset uint32
	Length uint32
}

// Config holds the tunables that must be fixed before Format or Detect is
// called: hash table sizing, cache sizing, and the per-block data cap. These
// mirror spec.md §6 exactly; there is no dynamic resizing after Format or
// Detect.
type Config struct {
	// NumInodes is the number of hash-table slots reserved for inode entries.
	NumInodes int
	// NumBlocks is the number of hash-table slots reserved for block entries.
	NumBlocks int
	// NumCacheInodes bounds how many inodes the block cache keeps a range
	// for (LRU-evicted). There is no separate inode metadata cache.
	NumCacheInodes int
	// NumCacheBlocks caps each cached range at NumCacheBlocks*BlockMaxDataSize
	// bytes.
	NumCacheBlocks int
	// BlockMaxDataSize is the largest number of data bytes one block record
	// may carry. Keep it small and consistent with the teacher's metadata
	// block cap pattern (squashfs caps metadata blocks at 8KiB); FFS block
	// records are typically a few hundred bytes.
	BlockMaxDataSize int

	// Areas describes the on-device layout a Flash driver should expose.
	// The core package itself only ever consults Flash.NumAreas/AreaSize;
	// this field exists for driver constructors like internal/flashfile
	// that need the layout up front to carve up a backing file. Areas may
	// have different lengths (original_source's ffs_area_descs mixes
	// sizes); nothing in this package assumes uniform area length.
	Areas []AreaDesc
}

// DefaultConfig returns sane defaults for small embedded targets.
func DefaultConfig() Config {
	return Config{
		NumInodes:        64,
		NumBlocks:        256,
		NumCacheInodes:   4,
		NumCacheBlocks:   64,
		BlockMaxDataSize: 256,
	}
}

func (c Config) validate() error {
	if c.NumInodes <= 0 || c.NumBlocks <= 0 {
		return ErrInvalid
	}
	if c.BlockMaxDataSize <= 0 {
		return ErrInvalid
	}
	return nil
}
