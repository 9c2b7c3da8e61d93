package store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/chunker"
	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// defaultCacheSize bounds the number of decoded chunks kept in memory by
// a diskStore. Eviction only drops the cached reference; the backing
// file on disk is never touched.
const defaultCacheSize = 1024

// mmapThreshold is the chunk size at or above which Chunk memory-maps
// the backing file instead of reading it fully into the cache.
const mmapThreshold = 1 << 20

// diskStore is an on-disk Store. Chunks live at
// <workDir>/data/<aa>/<bb>/<rest> where aa,bb,rest are the hex digest split
// per digest.Shard. Special files live directly under workDir, outside the
// sharded chunk area. Writes are atomic via temp-file + rename.
type diskStore struct {
	workDir   string // parent of dataDir; special files live here
	dataDir   string // <workDir>/data
	chunkSize int
	cache     *lru.Cache[digest.Digest, chunker.Chunk]
}

// NewDisk opens (creating if necessary) an on-disk Store rooted at
// workDir. Chunk content lives under workDir/data; special files
// (manifest, reflog) live directly under workDir.
func NewDisk(workDir string, chunkSize int) (Store, error) {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	dataDir := filepath.Join(workDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Errorf("store: creating data dir %s: %w", dataDir, err)
	}
	cache, err := lru.New[digest.Digest, chunker.Chunk](defaultCacheSize)
	if err != nil {
		return nil, xerrors.Errorf("store: creating LRU cache: %w", err)
	}
	return &diskStore{workDir: workDir, dataDir: dataDir, chunkSize: chunkSize, cache: cache}, nil
}

func (s *diskStore) ChunkSize() int { return s.chunkSize }

func (s *diskStore) chunkPath(d digest.Digest) string {
	aa, bb := d.Shard()
	hex := d.String()
	return filepath.Join(s.dataDir, aa, bb, hex[4:])
}

func (s *diskStore) Chunk(d digest.Digest) (chunker.Chunk, error) {
	if c, ok := s.cache.Get(d); ok {
		return c, nil
	}
	path := s.chunkPath(d)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("store: chunk %s: %w", d, ErrChunkGet)
		}
		return nil, xerrors.Errorf("store: stat chunk %s: %w", d, err)
	}

	var c chunker.Chunk
	if fi.Size() >= mmapThreshold {
		// Large chunks are mapped rather than copied into the cache; the
		// mapping itself is what gets cached and reused across reads.
		c = chunker.NewMmapChunk(path, false)
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("store: reading chunk %s: %w", d, err)
		}
		c = chunker.NewMemChunk(b)
	}
	s.cache.Add(d, c)
	return c, nil
}

func (s *diskStore) PutChunk(b []byte) (inode.ChunkDescriptor, error) {
	d := digest.Sum(b)
	path := s.chunkPath(d)
	if _, err := os.Stat(path); err == nil {
		// Idempotent: identical bytes already hashed to this digest and
		// are already on disk.
		return inode.ChunkDescriptor{Digest: d, Size: uint64(len(b))}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return inode.ChunkDescriptor{}, xerrors.Errorf("store: creating shard dir for %s: %w", d, err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return inode.ChunkDescriptor{}, xerrors.Errorf("store: writing chunk %s: %w", d, err)
	}
	s.cache.Add(d, chunker.NewMemChunk(b))
	return inode.ChunkDescriptor{Digest: d, Size: uint64(len(b))}, nil
}

func (s *diskStore) PutFile(r io.Reader) (inode.ChunkDescriptor, error) {
	return putFile(s, r)
}

func (s *diskStore) PutFileChunked(r io.Reader) ([]inode.ChunkDescriptor, error) {
	return putFileChunked(s, r)
}

func (s *diskStore) specialPath(name string) string {
	return filepath.Join(s.workDir, name)
}

func (s *diskStore) ReadSpecialFile(name string) ([]byte, error) {
	b, err := os.ReadFile(s.specialPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Errorf("store: special file %q: %w", name, ErrSpecialFileGet)
		}
		return nil, xerrors.Errorf("store: reading special file %q: %w", name, err)
	}
	return b, nil
}

func (s *diskStore) WriteSpecialFile(name string, b []byte, append bool) error {
	path := s.specialPath(name)
	if !append {
		if err := renameio.WriteFile(path, b, 0o644); err != nil {
			return xerrors.Errorf("store: writing special file %q: %w", name, err)
		}
		return nil
	}
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("store: reading special file %q for append: %w", name, err)
	}
	var buf bytes.Buffer
	buf.Write(existing)
	buf.Write(b)
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return xerrors.Errorf("store: appending special file %q: %w", name, err)
	}
	return nil
}
