// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package buffer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/creachadair/mds/mapset"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// headBytes is the size of the header mapping that publishes the cursor of
// the owner to readers.
const headBytes = 8

// A region is a byte range shared by one owner and any number of readers,
// together with a header holding the write cursor.
//
// The mappings are valid while μ is held and mem != nil.  Release holds μ
// exclusively, so no copy from the region can overlap the unmapping.
type region struct {
	μ      sync.RWMutex
	mem    []byte        // nil once released
	head   []byte        // headBytes long
	cursor *atomic.Int64 // points into head
	last   int64         // the cursor when the region was released
	err    error         // the result of the first release

	path  string // backing segment path, "" if private
	owner bool
	unmap func([]byte) error
}

func newRegion(mem, head []byte, path string, owner bool, unmap func([]byte) error) *region {
	rg := &region{
		mem:    mem,
		head:   head,
		cursor: (*atomic.Int64)(unsafe.Pointer(&head[0])),
		path:   path,
		owner:  owner,
		unmap:  unmap,
	}
	if owner {
		owned.add(rg)
	}
	return rg
}

// loadCursor reports the current cursor of rg, or its final value if rg has
// been released. The caller must hold rg.μ.
func (rg *region) loadCursor() int64 {
	if rg.mem == nil {
		return rg.last
	}
	return rg.cursor.Load()
}

// release unmaps the region, and if it is the owner, removes the backing
// segment and its sidecar files. It is safe to call release more than once;
// only the first call has any effect.
func (rg *region) release() error {
	rg.μ.Lock()
	defer rg.μ.Unlock()
	if rg.mem == nil {
		return rg.err
	}
	rg.last = rg.cursor.Load()
	var errs []error
	if rg.unmap != nil {
		errs = append(errs, rg.unmap(rg.mem), rg.unmap(rg.head))
	}
	rg.mem, rg.head, rg.cursor = nil, nil, nil
	if rg.owner {
		if rg.path != "" {
			errs = append(errs,
				removeIfExists(rg.path), removeIfExists(metaPath(rg.path)), removeIfExists(headPath(rg.path)))
		}
		owned.remove(rg)
	}
	rg.err = errors.Join(errs...)
	return rg.err
}

// owned tracks the regions owned by this process that have not been released.
var owned = &ownedSet{set: mapset.New[*region]()}

type ownedSet struct {
	μ   sync.Mutex
	set mapset.Set[*region]
}

func (o *ownedSet) add(rg *region) {
	o.μ.Lock()
	defer o.μ.Unlock()
	o.set.Add(rg)
}

func (o *ownedSet) remove(rg *region) {
	o.μ.Lock()
	defer o.μ.Unlock()
	o.set.Remove(rg)
}

func (o *ownedSet) take() []*region {
	o.μ.Lock()
	defer o.μ.Unlock()
	out := make([]*region, 0, len(o.set))
	for rg := range o.set {
		out = append(out, rg)
	}
	return out
}

// CloseAll releases every region created by New in this process that has not
// yet been closed, and removes its shared segment. A ring whose region was
// released by CloseAll behaves as if it had been closed.
//
// The runtime does not release shared segments when the process exits, so a
// program that creates rings should call CloseAll on every exit path.
func CloseAll() error {
	rgs := owned.take()
	var errs []error
	for _, rg := range rgs {
		errs = append(errs, rg.release())
	}
	if len(rgs) != 0 {
		Logger().Info("released ring buffers at exit", zap.Int("count", len(rgs)))
	}
	return errors.Join(errs...)
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		Logger().Debug("shared segment already removed", zap.String("path", path))
		return nil
	}
	return err
}

// segmentPath returns the file path for the shared segment with the given
// name. It prefers /dev/shm if it is available.
func segmentPath(name string) string {
	const prefix = "kpal_"
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return filepath.Join("/dev/shm", prefix+name)
	}
	return filepath.Join(os.TempDir(), prefix+name)
}

const metaVersion = 1

// segmentMeta describes the geometry of a shared segment to readers.  It is
// stored in a sidecar file next to the segment.
type segmentMeta struct {
	Version   int    `msgpack:"version"`
	Format    string `msgpack:"format"`
	Shape     []int  `msgpack:"shape"`
	Capacity  int    `msgpack:"capacity"`
	ItemBytes int    `msgpack:"item_bytes"`
}

func metaPath(segment string) string { return segment + ".meta" }

func headPath(segment string) string { return segment + ".head" }

func writeMeta(segment string, md segmentMeta) error {
	data, err := msgpack.Marshal(md)
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath(segment), data, 0644)
}

func readMeta(segment string) (segmentMeta, error) {
	var md segmentMeta
	data, err := os.ReadFile(metaPath(segment))
	if err != nil {
		return md, err
	}
	if err := msgpack.Unmarshal(data, &md); err != nil {
		return md, err
	}
	if md.Version != metaVersion {
		return md, errors.New("unsupported segment metadata version")
	}
	if md.Capacity <= 0 || md.ItemBytes <= 0 {
		return md, errors.New("invalid segment metadata")
	}
	return md, nil
}
