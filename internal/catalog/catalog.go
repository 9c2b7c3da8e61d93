// Package catalog implements the durable mapping from inode indices to
// inodes and from directory indices to their entry tables. Two backends
// are provided: an in-memory map and an embedded B-tree database
// (go.etcd.io/bbolt).
package catalog

import (
	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// Catalog is a durable (index -> inode) and (parent-index -> {name ->
// child-index}) mapping. Implementations commit every mutation before
// returning: readers never observe a partially-applied AddInode or
// AddDirEntry.
type Catalog interface {
	// MaxIndex returns the largest index ever added. It is
	// monotonically non-decreasing.
	MaxIndex() uint64

	// Inode fetches the inode at index i.
	Inode(i uint64) (inode.INode, error)

	// DirEntryIndex looks up name within parent's entry table.
	DirEntryIndex(parent uint64, name string) (uint64, bool, error)

	// DirEntries returns parent's full entry table, in no particular
	// order (callers that need a stable order sort it themselves).
	DirEntries(parent uint64) ([]inode.DirEntry, error)

	// AddInode inserts or replaces the inode record for ino.Attributes.Index.
	AddInode(ino inode.INode) error

	// AddDirEntry adds (or replaces) the mapping name -> child within
	// parent's entry table, and increments child's Nlink if child's inode
	// record is present (an absent child is linked with no Nlink update).
	AddDirEntry(parent uint64, name string, child uint64, childType inode.FileType) error

	// RemoveDirEntry removes name from parent's entry table, if present.
	RemoveDirEntry(parent uint64, name string) error

	// RemoveInode deletes the inode record at index i.
	RemoveInode(i uint64) error

	// Close releases any resources held by the catalog (e.g. the
	// underlying database file).
	Close() error
}

// ErrInodeNotFound is wrapped with the requested index.
var ErrInodeNotFound = xerrors.New("catalog: inode not found")

// ErrDirEntryNotFound identifies a missing directory entry. No Catalog
// method returns it: DirEntryIndex reports a miss through its bool result.
var ErrDirEntryNotFound = xerrors.New("catalog: directory entry not found")

// ErrVersion is wrapped with the on-disk version when a catalog file was
// written by a newer, incompatible version of this package.
var ErrVersion = xerrors.New("catalog: unsupported version")

// ErrSerialization wraps encode/decode failures of catalog records.
var ErrSerialization = xerrors.New("catalog: serialization failure")

// currentVersion is bumped whenever the on-disk record formats change in
// a backward-incompatible way.
const currentVersion = 1
