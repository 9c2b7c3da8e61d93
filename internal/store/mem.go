package store

import (
	"io"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/chunker"
	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// memStore is an in-memory Store, used by tests.
type memStore struct {
	chunkSize int
	chunks    map[digest.Digest][]byte
	special   map[string][]byte
}

// NewMem returns an in-memory Store that chunks files at chunkSize bytes.
func NewMem(chunkSize int) Store {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	return &memStore{
		chunkSize: chunkSize,
		chunks:    make(map[digest.Digest][]byte),
		special:   make(map[string][]byte),
	}
}

func (s *memStore) ChunkSize() int { return s.chunkSize }

func (s *memStore) Chunk(d digest.Digest) (chunker.Chunk, error) {
	b, ok := s.chunks[d]
	if !ok {
		return nil, xerrors.Errorf("store: chunk %s: %w", d, ErrChunkGet)
	}
	return chunker.NewMemChunk(b), nil
}

func (s *memStore) PutChunk(b []byte) (inode.ChunkDescriptor, error) {
	d := digest.Sum(b)
	if _, ok := s.chunks[d]; !ok {
		cp := make([]byte, len(b))
		copy(cp, b)
		s.chunks[d] = cp
	}
	return inode.ChunkDescriptor{Digest: d, Size: uint64(len(b))}, nil
}

func (s *memStore) PutFile(r io.Reader) (inode.ChunkDescriptor, error) {
	return putFile(s, r)
}

func (s *memStore) PutFileChunked(r io.Reader) ([]inode.ChunkDescriptor, error) {
	return putFileChunked(s, r)
}

func (s *memStore) ReadSpecialFile(name string) ([]byte, error) {
	b, ok := s.special[name]
	if !ok {
		return nil, xerrors.Errorf("store: special file %q: %w", name, ErrSpecialFileGet)
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, nil
}

func (s *memStore) WriteSpecialFile(name string, b []byte, append bool) error {
	if append {
		s.special[name] = append2(s.special[name], b)
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	s.special[name] = cp
	return nil
}

// append2 avoids shadowing the append builtin in WriteSpecialFile's
// parameter name.
func append2(dst, src []byte) []byte {
	out := make([]byte, 0, len(dst)+len(src))
	out = append(out, dst...)
	out = append(out, src...)
	return out
}
