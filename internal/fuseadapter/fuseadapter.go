// Package fuseadapter translates jacobsa/fuse kernel operations into
// requests against an engine.Engine. Every method here does exactly one
// thing: build a request from the op's input fields, send it, and copy
// the typed reply back into the op's output fields. No caching, no
// business logic — that all lives in the engine and the workspace
// manager it serializes access to.
package fuseadapter

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/sedimentfs/sedimentfs/internal/engine"
	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// FileSystem implements fuseutil.FileSystem by forwarding every
// operation to an Engine. The zero value is not usable; construct with
// New.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	eng *engine.Engine

	// uid/gid are stamped onto every newly created inode. jacobsa/fuse
	// does not surface the calling process's uid/gid on CreateFile or
	// MkDir requests the way it does for the mount's OpContext.Pid, so
	// ownership here follows the process that mounted the filesystem,
	// the same single-owner model the control socket and CLI assume.
	uid, gid uint32
}

// New wraps eng in a fuseutil.FileSystem. uid/gid are applied to every
// inode this filesystem creates.
func New(eng *engine.Engine, uid, gid uint32) *FileSystem {
	return &FileSystem{eng: eng, uid: uid, gid: gid}
}

// never marks attributes that the kernel may cache indefinitely: the
// catalog is the only source of truth and every mutation goes through
// this same engine, so there is nothing external to invalidate against.
var never = time.Now().Add(365 * 24 * time.Hour)

func kindMode(kind inode.FileType, perm uint16) os.FileMode {
	mode := os.FileMode(perm)
	switch kind {
	case inode.Directory:
		mode |= os.ModeDir
	case inode.Symlink:
		mode |= os.ModeSymlink
	case inode.NamedPipe:
		mode |= os.ModeNamedPipe
	case inode.CharDevice:
		mode |= os.ModeCharDevice
	case inode.BlockDevice:
		mode |= os.ModeDevice
	}
	return mode
}

func direntType(kind inode.FileType) fuseutil.DirentType {
	switch kind {
	case inode.Directory:
		return fuseutil.DT_Directory
	case inode.Symlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

func toAttributes(attrs inode.FileAttributes) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   attrs.Size,
		Nlink:  attrs.Nlink,
		Mode:   kindMode(attrs.Kind, attrs.Perm),
		Atime:  attrs.Atime,
		Mtime:  attrs.Mtime,
		Ctime:  attrs.Ctime,
		Crtime: attrs.Crtime,
		Uid:    attrs.Uid,
		Gid:    attrs.Gid,
	}
}

// toErrno maps workspace/catalog/store sentinel errors onto the errno
// values the kernel understands. Anything unrecognized becomes EIO,
// matching the teacher's own fallback for unexpected backend failures.
func toErrno(err error) error {
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return syscall.ENOENT
	case isExists(err):
		return syscall.EEXIST
	case isNotEmpty(err):
		return syscall.ENOTEMPTY
	case isNotDirectory(err):
		return syscall.ENOTDIR
	case isAccessDenied(err):
		return syscall.EACCES
	default:
		return syscall.EIO
	}
}

func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.Blocks = 1
	op.BlocksFree = 0
	op.BlocksAvailable = 0
	op.IoSize = 65536
	return nil
}

func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	attrs, ok, err := fs.eng.Lookup(uint64(op.Parent), op.Name)
	if err != nil {
		return toErrno(err)
	}
	if !ok {
		return syscall.ENOENT
	}
	op.Entry.Child = fuseops.InodeID(attrs.Index)
	op.Entry.Attributes = toAttributes(attrs)
	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never
	return nil
}

func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	attrs, err := fs.eng.GetAttr(uint64(op.Inode))
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = toAttributes(attrs)
	op.AttributesExpiration = never
	return nil
}

func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	var changes inode.FileAttributeChanges
	changes.Size = op.Size
	changes.Atime = op.Atime
	changes.Mtime = op.Mtime
	if op.Mode != nil {
		perm := uint16(op.Mode.Perm())
		changes.Perm = &perm
	}
	attrs, err := fs.eng.SetAttr(uint64(op.Inode), changes)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = toAttributes(attrs)
	op.AttributesExpiration = never
	return nil
}

func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	attrs, err := fs.eng.CreateDir(uint64(op.Parent), op.Name, uint16(op.Mode.Perm()), fs.uid, fs.gid)
	if err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fuseops.InodeID(attrs.Index)
	op.Entry.Attributes = toAttributes(attrs)
	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never
	return nil
}

func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	attrs, err := fs.eng.CreateFile(uint64(op.Parent), op.Name, uint16(op.Mode.Perm()), fs.uid, fs.gid)
	if err != nil {
		return toErrno(err)
	}
	if err := fs.eng.OpenFile(attrs.Index, true); err != nil {
		return toErrno(err)
	}
	op.Entry.Child = fuseops.InodeID(attrs.Index)
	op.Entry.Attributes = toAttributes(attrs)
	op.Entry.AttributesExpiration = never
	op.Entry.EntryExpiration = never
	return nil
}

func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return toErrno(fs.eng.RemoveDir(uint64(op.Parent), op.Name))
}

func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return toErrno(fs.eng.Unlink(uint64(op.Parent), op.Name))
}

func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	return toErrno(fs.eng.Rename(uint64(op.OldParent), op.OldName, uint64(op.NewParent), op.NewName))
}

func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	return toErrno(fs.eng.OpenDir(uint64(op.Inode)))
}

func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.eng.ReleaseDir(uint64(op.Handle))
	return nil
}

func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	catEntries, err := fs.eng.ReadDir(uint64(op.Inode))
	if err != nil {
		return toErrno(err)
	}
	entries := make([]fuseutil.Dirent, len(catEntries))
	for i, e := range catEntries {
		entries[i] = fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fuseops.InodeID(e.Index),
			Name:   e.Name,
			Type:   direntType(e.EntryType),
		}
	}
	if op.Offset > fuseops.DirOffset(len(entries)) {
		return syscall.EIO
	}
	for _, e := range entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], e)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	return toErrno(fs.eng.OpenFile(uint64(op.Inode), true))
}

func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	data, err := fs.eng.ReadData(uint64(op.Inode), uint64(op.Offset), len(op.Dst))
	if err != nil {
		return toErrno(err)
	}
	op.BytesRead = copy(op.Dst, data)
	return nil
}

func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	_, err := fs.eng.WriteData(uint64(op.Inode), uint64(op.Offset), op.Data)
	return toErrno(err)
}

func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	_, err := fs.eng.Commit()
	return toErrno(err)
}

func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.eng.ReleaseFile(uint64(op.Handle))
	return nil
}

func (fs *FileSystem) Destroy() {
	fs.eng.Stop()
}
