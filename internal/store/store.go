// Package store implements the content-addressed chunk store: two
// backends (in-memory and on-disk sharded directory with an LRU cache)
// behind a common interface, plus a non-content-addressed namespace for
// special files (manifest, reflog).
package store

import (
	"bytes"
	"io"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/chunker"
	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// Store persists and retrieves content-addressed chunks, plus a small
// number of non-content-addressed special files.
type Store interface {
	// ChunkSize returns the chunker's target chunk size for this store.
	ChunkSize() int

	// Chunk fetches the chunk identified by d. Fails with ErrChunkGet if
	// absent.
	Chunk(d digest.Digest) (chunker.Chunk, error)

	// PutChunk hashes b, stores it if new, and returns its descriptor.
	// Calling PutChunk twice with identical bytes is idempotent: it
	// yields the same descriptor and leaves the store's observable
	// state unchanged.
	PutChunk(b []byte) (inode.ChunkDescriptor, error)

	// PutFile reads r to completion and stores it as a single chunk.
	PutFile(r io.Reader) (inode.ChunkDescriptor, error)

	// PutFileChunked streams r through the chunker, storing each chunk
	// and returning the ordered list of descriptors.
	PutFileChunked(r io.Reader) ([]inode.ChunkDescriptor, error)

	// ReadSpecialFile reads a non-content-addressed file by name (e.g.
	// "manifest", "reflog").
	ReadSpecialFile(name string) ([]byte, error)

	// WriteSpecialFile writes a non-content-addressed file. If append is
	// true, b is appended to any existing content; otherwise the file
	// is atomically replaced.
	WriteSpecialFile(name string, b []byte, append bool) error
}

// ErrChunkGet is wrapped with the requested digest when a chunk is
// absent from the store.
var ErrChunkGet = xerrors.New("store: chunk not found")

// ErrSpecialFileGet is wrapped with the requested name when a special
// file is absent from the store.
var ErrSpecialFileGet = xerrors.New("store: special file not found")

func putFileChunked(s Store, r io.Reader) ([]inode.ChunkDescriptor, error) {
	var descs []inode.ChunkDescriptor
	buf := make([]byte, s.ChunkSize())
	err := chunker.ReadChunked(r, buf, func(b []byte) error {
		desc, err := s.PutChunk(b)
		if err != nil {
			return err
		}
		descs = append(descs, desc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return descs, nil
}

func putFile(s Store, r io.Reader) (inode.ChunkDescriptor, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return inode.ChunkDescriptor{}, xerrors.Errorf("store: reading file: %w", err)
	}
	return s.PutChunk(buf.Bytes())
}
