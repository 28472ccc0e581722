// Package snapshot archives a raw flash area to a host file for field
// diagnostics before GC erases it (spec.md §4.I step 4: "erase area").
// Compression backends register themselves from build-tag-gated files,
// mirroring the teacher's comp_xz.go/comp_zstd.go pattern.
package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Compression identifies a registered archive backend.
type Compression uint8

const (
	None Compression = iota
	XZ
	ZSTD
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case XZ:
		return "xz"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// Handler pairs a compressor and decompressor for one backend.
type Handler struct {
	Compress   func([]byte) ([]byte, error)
	Decompress func(io.Reader) (io.ReadCloser, error)
}

var handlers = map[Compression]*Handler{
	None: {
		Compress:   func(b []byte) ([]byte, error) { return b, nil },
		Decompress: func(r io.Reader) (io.ReadCloser, error) { return io.NopCloser(r), nil },
	},
}

// RegisterHandler installs a codec for c. Called from init() in the
// build-tag-gated comp_xz.go/comp_zstd.go files.
func RegisterHandler(c Compression, h *Handler) {
	handlers[c] = h
}

// Available reports whether c has a registered handler (XZ/ZSTD require
// their respective build tag).
func Available(c Compression) bool {
	_, ok := handlers[c]
	return ok
}

// DumpArea compresses raw and writes it to path using backend c.
func DumpArea(path string, raw []byte, c Compression) error {
	h, ok := handlers[c]
	if !ok {
		return fmt.Errorf("snapshot: compression backend %s not registered (missing build tag?)", c)
	}
	out, err := h.Compress(raw)
	if err != nil {
		return fmt.Errorf("snapshot: compress: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// RestoreArea reads and decompresses a dump written by DumpArea.
func RestoreArea(path string, c Compression) ([]byte, error) {
	h, ok := handlers[c]
	if !ok {
		return nil, fmt.Errorf("snapshot: compression backend %s not registered (missing build tag?)", c)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rc, err := h.Decompress(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decompress: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
