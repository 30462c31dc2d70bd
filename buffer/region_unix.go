// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

//go:build unix

package buffer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createRegion creates a new zero-filled shared segment of the given size,
// with exclusive access, and maps it read-write.
func createRegion(name string, size int, md segmentMeta) (*region, error) {
	path := segmentPath(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("create segment %s: %w", path, err)
	}
	defer f.Close() // the mapping outlives the descriptor

	cleanup := func() { os.Remove(path); os.Remove(metaPath(path)); os.Remove(headPath(path)) }
	if err := f.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("resize segment: %w", err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap segment: %w", err)
	}
	head, err := mapHead(headPath(path), true)
	if err != nil {
		unix.Munmap(mem)
		cleanup()
		return nil, err
	}
	if err := writeMeta(path, md); err != nil {
		unix.Munmap(mem)
		unix.Munmap(head)
		cleanup()
		return nil, fmt.Errorf("write segment metadata: %w", err)
	}
	return newRegion(mem, head, path, true, unix.Munmap), nil
}

// mapHead maps the cursor header of a segment, creating it if create is
// true. Only the creator maps it writable.
func mapHead(path string, create bool) ([]byte, error) {
	flag, prot := os.O_RDONLY, unix.PROT_READ
	if create {
		flag, prot = os.O_CREATE|os.O_EXCL|os.O_RDWR, unix.PROT_READ|unix.PROT_WRITE
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, fmt.Errorf("open segment header: %w", err)
	}
	defer f.Close()
	if create {
		if err := f.Truncate(headBytes); err != nil {
			return nil, fmt.Errorf("resize segment header: %w", err)
		}
	}
	head, err := unix.Mmap(int(f.Fd()), 0, headBytes, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap segment header: %w", err)
	}
	return head, nil
}

// openRegion maps an existing shared segment read-only.
func openRegion(name string) (*region, segmentMeta, error) {
	path := segmentPath(name)
	md, err := readMeta(path)
	if err != nil {
		return nil, md, fmt.Errorf("read segment metadata: %w", err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, md, fmt.Errorf("open segment %s: %w", path, err)
	}
	defer f.Close()

	size := md.Capacity * md.ItemBytes
	if fi, err := f.Stat(); err != nil {
		return nil, md, err
	} else if fi.Size() != int64(size) {
		return nil, md, fmt.Errorf("%w: segment is %d bytes, metadata implies %d", ErrSizing, fi.Size(), size)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, md, fmt.Errorf("mmap segment: %w", err)
	}
	head, err := mapHead(headPath(path), false)
	if err != nil {
		unix.Munmap(mem)
		return nil, md, err
	}
	return newRegion(mem, head, path, false, unix.Munmap), md, nil
}
