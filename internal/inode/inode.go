// Package inode defines the data model shared by the catalog and the
// workspaces: file attributes, inode records, chunk descriptors and
// directory entries.
package inode

import (
	"time"

	"github.com/sedimentfs/sedimentfs/internal/digest"
)

// RootIndex is the stable index of the root directory. It never changes.
const RootIndex = 1

// FileType enumerates the kinds of files the catalog can describe.
type FileType uint8

const (
	NamedPipe FileType = iota
	CharDevice
	BlockDevice
	Directory
	RegularFile
	Symlink
)

func (t FileType) String() string {
	switch t {
	case NamedPipe:
		return "named-pipe"
	case CharDevice:
		return "char-device"
	case BlockDevice:
		return "block-device"
	case Directory:
		return "directory"
	case RegularFile:
		return "regular-file"
	case Symlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// ChunkDescriptor identifies one chunk of a file's content.
type ChunkDescriptor struct {
	Digest digest.Digest `cbor:"digest"`
	Size   uint64        `cbor:"size"`
}

// FileAttributes holds the POSIX-ish metadata tracked per inode.
type FileAttributes struct {
	Index  uint64 `cbor:"index"`
	Size   uint64 `cbor:"size"`
	Blocks uint64 `cbor:"blocks"`

	Atime  time.Time `cbor:"atime"`
	Mtime  time.Time `cbor:"mtime"`
	Ctime  time.Time `cbor:"ctime"`
	Crtime time.Time `cbor:"crtime"`

	Kind  FileType `cbor:"kind"`
	Perm  uint16   `cbor:"perm"`
	Nlink uint32   `cbor:"nlink"`
	Uid   uint32   `cbor:"uid"`
	Gid   uint32   `cbor:"gid"`
	Rdev  uint32   `cbor:"rdev"`
	Flags uint32   `cbor:"flags"`
}

// FileAttributeChanges is an optional-per-field diff applied by SetAttr.
// A nil pointer field means "leave unchanged".
type FileAttributeChanges struct {
	Size  *uint64
	Atime *time.Time
	Mtime *time.Time
	Ctime *time.Time
	Perm  *uint16
	Uid   *uint32
	Gid   *uint32
	Flags *uint32
}

// Apply mutates attrs in place according to the non-nil fields in c and
// reports whether Size was among them (the caller must then truncate the
// corresponding file workspace).
func (c FileAttributeChanges) Apply(attrs *FileAttributes) (sizeChanged bool) {
	if c.Size != nil {
		attrs.Size = *c.Size
		sizeChanged = true
	}
	if c.Atime != nil {
		attrs.Atime = *c.Atime
	}
	if c.Mtime != nil {
		attrs.Mtime = *c.Mtime
	}
	if c.Ctime != nil {
		attrs.Ctime = *c.Ctime
	}
	if c.Perm != nil {
		attrs.Perm = *c.Perm
	}
	if c.Uid != nil {
		attrs.Uid = *c.Uid
	}
	if c.Gid != nil {
		attrs.Gid = *c.Gid
	}
	if c.Flags != nil {
		attrs.Flags = *c.Flags
	}
	return sizeChanged
}

// INode is the catalog's metadata record for a file or directory.
// Directories carry no Chunks; their membership lives in the catalog's
// dir-entries table, keyed by the directory's own Index.
type INode struct {
	Attributes FileAttributes    `cbor:"attributes"`
	Chunks     []ChunkDescriptor `cbor:"chunks"`
}

// DirEntry names one child of a directory.
type DirEntry struct {
	Index     uint64   `cbor:"index"`
	Name      string   `cbor:"name"`
	EntryType FileType `cbor:"entry_type"`
}
