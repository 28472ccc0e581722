package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nffs/ffs"
	"github.com/nffs/ffs/internal/flashfile"
	"github.com/nffs/ffs/internal/snapshot"
)

const usage = `ffscli - flash filesystem image tool

Usage:
  ffscli format <image> [areas] [area-size]     Format a fresh image (default 4 areas x 65536 bytes)
  ffscli ls <image> [path]                      List a directory (default /)
  ffscli cat <image> <path>                     Print a file's contents
  ffscli mkdir <image> <path>                   Create a directory
  ffscli rm <image> <path>                      Remove a file or directory
  ffscli gc <image> [area] [--dump-source FILE]  Run garbage collection, optionally archiving the source area first
  ffscli info <image>                           Show area and health summary
  ffscli help                                   Show this help message
`

const (
	defaultAreas    = 4
	defaultAreaSize = 65536
)

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "format":
		err = cmdFormat(os.Args[2:])
	case "ls":
		err = cmdLs(os.Args[2:])
	case "cat":
		err = cmdCat(os.Args[2:])
	case "mkdir":
		err = cmdMkdir(os.Args[2:])
	case "rm":
		err = cmdRm(os.Args[2:])
	case "gc":
		err = cmdGC(os.Args[2:])
	case "info":
		err = cmdInfo(os.Args[2:])
	case "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", os.Args[1])
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func areaLayout(n int, size uint32) []ffs.AreaDesc {
	areas := make([]ffs.AreaDesc, n)
	for i := range areas {
		areas[i] = ffs.AreaDesc{Offset: uint32(i) * size, Length: size}
	}
	return areas
}

func openFormatted(image string, areas []ffs.AreaDesc) (*flashfile.Driver, *ffs.FileSystem, error) {
	drv, err := flashfile.Open(image, areas)
	if err != nil {
		return nil, nil, fmt.Errorf("open backing file: %w", err)
	}
	fsys, err := ffs.Detect(drv, ffs.DefaultConfig())
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("detect: %w", err)
	}
	return drv, fsys, nil
}

func cmdFormat(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing image path")
	}
	n := defaultAreas
	size := uint32(defaultAreaSize)
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid area count: %w", err)
		}
		n = v
	}
	if len(args) > 2 {
		v, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid area size: %w", err)
		}
		size = uint32(v)
	}
	areas := areaLayout(n, size)
	drv, err := flashfile.Open(args[0], areas)
	if err != nil {
		return fmt.Errorf("open backing file: %w", err)
	}
	defer drv.Close()
	if _, err := ffs.Format(drv, ffs.DefaultConfig()); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	fmt.Printf("formatted %s: %d areas x %d bytes\n", args[0], n, size)
	return nil
}

func cmdLs(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing image path")
	}
	path := "/"
	if len(args) > 1 {
		path = args[1]
	}
	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()

	entries, err := fsys.Readdir(path)
	if err != nil {
		return fmt.Errorf("ls %s: %w", path, err)
	}
	for _, e := range entries {
		kind := "-"
		if e.IsDir {
			kind = "d"
		}
		fmt.Printf("%s %8d %s\n", kind, e.Size, e.Name)
	}
	return nil
}

func cmdCat(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing image or file path")
	}
	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()

	f, err := fsys.Open(args[1], ffs.Read)
	if err != nil {
		return fmt.Errorf("open %s: %w", args[1], err)
	}
	defer f.Close()

	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if err != nil || n == 0 {
			if err != nil && err != io.EOF {
				return err
			}
			break
		}
	}
	return nil
}

func cmdMkdir(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing image or directory path")
	}
	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()
	if err := fsys.Mkdir(args[1]); err != nil {
		return fmt.Errorf("mkdir %s: %w", args[1], err)
	}
	return nil
}

func cmdRm(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("missing image or path")
	}
	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()
	if err := fsys.Unlink(args[1]); err != nil {
		return fmt.Errorf("rm %s: %w", args[1], err)
	}
	return nil
}

func cmdGC(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing image path")
	}
	var dumpTo string
	var areaArg string
	for i := 1; i < len(args); i++ {
		if args[i] == "--dump-source" && i+1 < len(args) {
			dumpTo = args[i+1]
			i++
			continue
		}
		areaArg = args[i]
	}

	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()

	idx := fsys.NextGCArea()
	if areaArg != "" {
		idx, err = strconv.Atoi(areaArg)
		if err != nil {
			return fmt.Errorf("invalid area index: %w", err)
		}
	}
	if idx < 0 {
		return fmt.Errorf("gc: no area available to collect")
	}

	if dumpTo != "" {
		raw, err := fsys.AreaBytes(idx)
		if err != nil {
			return fmt.Errorf("dump source area %d: %w", idx, err)
		}
		if err := snapshot.DumpArea(dumpTo, raw, snapshot.None); err != nil {
			return fmt.Errorf("dump source area %d: %w", idx, err)
		}
		fmt.Printf("archived area %d to %s\n", idx, dumpTo)
	}

	if areaArg != "" {
		if err := fsys.GCArea(idx); err != nil {
			return fmt.Errorf("gc area %d: %w", idx, err)
		}
		return nil
	}
	if err := fsys.GC(); err != nil {
		return fmt.Errorf("gc: %w", err)
	}
	return nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("missing image path")
	}
	drv, fsys, err := openFormatted(args[0], areaLayout(defaultAreas, defaultAreaSize))
	if err != nil {
		return err
	}
	defer drv.Close()

	fmt.Printf("healthy: %v\n", fsys.Healthy())
	fmt.Println("areas:")
	for _, a := range fsys.Areas() {
		scratch := ""
		if a.IsScratch {
			scratch = " (scratch)"
		}
		fmt.Printf("  [%d] id=%d gcSeq=%d used=%d/%d%s\n", a.Index, a.ID, a.GCSeq, a.Used, a.Length, scratch)
	}
	return nil
}
