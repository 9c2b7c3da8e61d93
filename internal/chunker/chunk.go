package chunker

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"
)

// Chunk exposes uniform read access over an immutable byte range, whether
// it is held in memory or memory-mapped from a backing file. Chunks are
// shared immutably: any number of file workspaces may concurrently hold a
// reference to the same Chunk via the store's cache.
type Chunk interface {
	// Slice returns the chunk's bytes. The returned slice must not be
	// modified or retained past the Chunk's lifetime.
	Slice() []byte
	// Size returns len(Slice()).
	Size() int
}

// memChunk is a Chunk backed by an owned byte slice.
type memChunk struct {
	b []byte
}

// NewMemChunk wraps b as an in-memory Chunk. b is retained, not copied.
func NewMemChunk(b []byte) Chunk { return memChunk{b: b} }

func (c memChunk) Slice() []byte { return c.b }
func (c memChunk) Size() int     { return len(c.b) }

// mmapChunk lazily maps path into memory on first Slice() call. If
// deleteOnClose is set, Close unlinks the backing file after unmapping —
// used by a future compression/decryption pipeline to purge scratch
// copies of unpacked chunks.
type mmapChunk struct {
	path          string
	deleteOnClose bool

	once sync.Once
	data []byte
	err  error
}

// NewMmapChunk returns a Chunk that memory-maps path on first access.
func NewMmapChunk(path string, deleteOnClose bool) Chunk {
	return &mmapChunk{path: path, deleteOnClose: deleteOnClose}
}

func (c *mmapChunk) mapOnce() {
	f, err := os.Open(c.path)
	if err != nil {
		c.err = xerrors.Errorf("chunker: opening %s for mmap: %w", c.path, err)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		c.err = xerrors.Errorf("chunker: stat %s: %w", c.path, err)
		return
	}
	if fi.Size() == 0 {
		c.data = nil
		return
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		c.err = xerrors.Errorf("chunker: mmap %s: %w", c.path, err)
		return
	}
	c.data = data
}

func (c *mmapChunk) Slice() []byte {
	c.once.Do(c.mapOnce)
	return c.data
}

func (c *mmapChunk) Size() int {
	return len(c.Slice())
}

// Close unmaps the chunk and, if deleteOnClose was set, removes its
// backing file. Close is idempotent.
func (c *mmapChunk) Close() error {
	if c.data != nil {
		if err := unix.Munmap(c.data); err != nil {
			return xerrors.Errorf("chunker: munmap %s: %w", c.path, err)
		}
		c.data = nil
	}
	if c.deleteOnClose {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			return xerrors.Errorf("chunker: removing backing file %s: %w", c.path, err)
		}
	}
	return nil
}
