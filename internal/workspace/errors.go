package workspace

import "golang.org/x/xerrors"

// ErrAccess reports a denied access; the kernel adapter maps it to
// EACCES. OpenFile accepts write-flagged opens and does not return it.
var ErrAccess = xerrors.New("workspace: access denied")

// ErrNotDirectory is returned when an operation expecting a directory
// inode is given something else.
var ErrNotDirectory = xerrors.New("workspace: not a directory")

// ErrNotRegularFile is returned when an operation expecting a regular
// file inode is given something else.
var ErrNotRegularFile = xerrors.New("workspace: not a regular file")

// ErrDirEntryLookup is returned by remove/rmdir/rename when the named
// entry does not exist in its parent.
var ErrDirEntryLookup = xerrors.New("workspace: directory entry lookup failed")

// ErrNotEmpty is returned by Rmdir when the target directory still has
// entries.
var ErrNotEmpty = xerrors.New("workspace: directory not empty")

// ErrExists is returned by CreateFile/CreateDir when name already exists
// in the parent.
var ErrExists = xerrors.New("workspace: entry already exists")

// ErrUnsupportedRename is returned when Rename's destination exists and
// names a directory or any non-regular-file type. The source behavior
// this is adapted from simply panics in that case; an error return is
// the safer substitute.
var ErrUnsupportedRename = xerrors.New("workspace: rename would clobber a non-regular-file entry")

// ErrIndexExhausted reports that the index generator has reached the
// top of its range; no further index can be allocated. It is returned
// to the caller of the create request and does not stop the engine.
var ErrIndexExhausted = xerrors.New("workspace: index generator exhausted")

// ErrInodeLookup wraps a miss against the in-memory inode workspace
// cache combined with a catalog miss.
var ErrInodeLookup = xerrors.New("workspace: inode lookup failed")
