package ffs

import "errors"

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrNotExist is returned when a path component does not exist (ENOENT).
	ErrNotExist = errors.New("ffs: no such file or directory")

	// ErrExist is returned when an operation requires the target to be absent (EEXIST).
	ErrExist = errors.New("ffs: file already exists")

	// ErrInvalid is returned for malformed arguments: relative paths, empty
	// components, seeking past EOF, renaming onto a non-absolute path (EINVAL).
	ErrInvalid = errors.New("ffs: invalid argument")

	// ErrNotDirectory is returned when a non-leaf path component isn't a directory.
	ErrNotDirectory = errors.New("ffs: not a directory")

	// ErrIsDirectory is returned when a file operation targets a directory.
	ErrIsDirectory = errors.New("ffs: is a directory")

	// ErrNoSpace is returned when no area has room and a GC pass didn't free enough (EOS).
	ErrNoSpace = errors.New("ffs: out of space")

	// ErrNoMem is returned when the hash index is full (ENOMEM). Fatal for that call.
	ErrNoMem = errors.New("ffs: out of memory")

	// ErrCorrupt is returned only by Detect when data couldn't be fully salvaged.
	ErrCorrupt = errors.New("ffs: corrupt filesystem")

	// ErrHardware wraps a failure returned by the underlying Flash driver (EHW).
	// A failed write or erase also marks the filesystem unhealthy; a failed
	// read does not. See FileSystem.Healthy.
	ErrHardware = errors.New("ffs: flash i/o error")

	// ErrUnhealthy is returned by any mutating call after a prior ErrHardware,
	// until the filesystem is remounted.
	ErrUnhealthy = errors.New("ffs: filesystem unhealthy, remount required")

	// ErrTorn is returned internally by the record codec when a record is a
	// partial (torn) write; callers of Decode see it to stop replay of an area.
	ErrTorn = errors.New("ffs: torn record")

	// ErrBadMagic is returned when a record's magic byte doesn't match any known kind.
	ErrBadMagic = errors.New("ffs: bad record magic")

	// ErrBadCRC is returned when a record's trailing CRC doesn't match its body.
	ErrBadCRC = errors.New("ffs: crc mismatch")

	// ErrNotFormatted is returned by Detect when no area carries a valid header.
	ErrNotFormatted = errors.New("ffs: no formatted areas found")
)
