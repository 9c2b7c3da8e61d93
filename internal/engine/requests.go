package engine

import (
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/workspace"
)

// request is a unit of work enqueued on the engine's request channel.
// Each operation in the engine's public API gets its own request type
// carrying typed inputs and a dedicated, buffer-1 reply channel so the
// caller never races the engine goroutine for delivery.
type request interface {
	exec(e *Engine)
}

type GetAttrRequest struct {
	Index uint64
	Reply chan GetAttrReply
}
type GetAttrReply struct {
	Attrs inode.FileAttributes
	Err   error
}

func (r *GetAttrRequest) exec(e *Engine) {
	attrs, err := e.mgr.GetAttr(r.Index)
	r.Reply <- GetAttrReply{attrs, err}
}

type SetAttrRequest struct {
	Index   uint64
	Changes inode.FileAttributeChanges
	Reply   chan SetAttrReply
}
type SetAttrReply struct {
	Attrs inode.FileAttributes
	Err   error
}

func (r *SetAttrRequest) exec(e *Engine) {
	attrs, err := e.mgr.SetAttr(r.Index, r.Changes)
	r.Reply <- SetAttrReply{attrs, err}
}

type LookupRequest struct {
	Parent uint64
	Name   string
	Reply  chan LookupReply
}
type LookupReply struct {
	Attrs inode.FileAttributes
	Found bool
	Err   error
}

func (r *LookupRequest) exec(e *Engine) {
	attrs, found, err := e.mgr.Lookup(r.Parent, r.Name)
	r.Reply <- LookupReply{attrs, found, err}
}

type OpenDirRequest struct {
	Index uint64
	Reply chan ErrReply
}

func (r *OpenDirRequest) exec(e *Engine) {
	r.Reply <- ErrReply{e.mgr.OpenDir(r.Index)}
}

type ReleaseDirRequest struct {
	Index uint64
	Reply chan struct{}
}

func (r *ReleaseDirRequest) exec(e *Engine) {
	e.mgr.ReleaseDir(r.Index)
	r.Reply <- struct{}{}
}

type ReadDirRequest struct {
	Index uint64
	Reply chan ReadDirReply
}
type ReadDirReply struct {
	Entries []inode.DirEntry
	Err     error
}

func (r *ReadDirRequest) exec(e *Engine) {
	entries, err := e.mgr.ReadDir(r.Index)
	r.Reply <- ReadDirReply{entries, err}
}

type OpenFileRequest struct {
	Index uint64
	Write bool
	Reply chan ErrReply
}

func (r *OpenFileRequest) exec(e *Engine) {
	r.Reply <- ErrReply{e.mgr.OpenFile(r.Index, r.Write)}
}

type ReadDataRequest struct {
	Index  uint64
	Offset uint64
	Size   int
	Reply  chan ReadDataReply
}
type ReadDataReply struct {
	Data []byte
	Err  error
}

func (r *ReadDataRequest) exec(e *Engine) {
	if r.Offset > 1<<62 {
		r.Offset = 0
	}
	data, err := e.mgr.ReadData(r.Index, r.Offset, r.Size)
	r.Reply <- ReadDataReply{data, err}
}

type WriteDataRequest struct {
	Index  uint64
	Offset uint64
	Data   []byte
	Reply  chan WriteDataReply
}
type WriteDataReply struct {
	N   uint32
	Err error
}

func (r *WriteDataRequest) exec(e *Engine) {
	n, err := e.mgr.WriteData(r.Index, r.Offset, r.Data)
	r.Reply <- WriteDataReply{n, err}
}

type ReleaseFileRequest struct {
	Index uint64
	Reply chan struct{}
}

func (r *ReleaseFileRequest) exec(e *Engine) {
	e.mgr.ReleaseFile(r.Index)
	r.Reply <- struct{}{}
}

type CreateFileRequest struct {
	Parent   uint64
	Name     string
	Perm     uint16
	Uid, Gid uint32
	Reply    chan CreateReply
}
type CreateReply struct {
	Attrs inode.FileAttributes
	Err   error
}

func (r *CreateFileRequest) exec(e *Engine) {
	attrs, err := e.mgr.CreateFile(r.Parent, r.Name, r.Perm, r.Uid, r.Gid)
	r.Reply <- CreateReply{attrs, err}
}

type CreateDirRequest struct {
	Parent   uint64
	Name     string
	Perm     uint16
	Uid, Gid uint32
	Reply    chan CreateReply
}

func (r *CreateDirRequest) exec(e *Engine) {
	attrs, err := e.mgr.CreateDir(r.Parent, r.Name, r.Perm, r.Uid, r.Gid)
	r.Reply <- CreateReply{attrs, err}
}

type UnlinkRequest struct {
	Parent uint64
	Name   string
	Reply  chan ErrReply
}

func (r *UnlinkRequest) exec(e *Engine) {
	r.Reply <- ErrReply{e.mgr.Remove(r.Parent, r.Name)}
}

type RemoveDirRequest struct {
	Parent uint64
	Name   string
	Reply  chan ErrReply
}

func (r *RemoveDirRequest) exec(e *Engine) {
	r.Reply <- ErrReply{e.mgr.Rmdir(r.Parent, r.Name)}
}

type RenameRequest struct {
	OldParent uint64
	OldName   string
	NewParent uint64
	NewName   string
	Reply     chan ErrReply
}

func (r *RenameRequest) exec(e *Engine) {
	r.Reply <- ErrReply{e.mgr.Rename(r.OldParent, r.OldName, r.NewParent, r.NewName)}
}

type CommitRequest struct {
	Reply chan CommitReply
}
type CommitReply struct {
	Summary workspace.CommitSummary
	Err     error
}

func (r *CommitRequest) exec(e *Engine) {
	summary, err := e.mgr.Commit(e.catalogPath, e.manifestPath, e.reflogPath)
	r.Reply <- CommitReply{summary, err}
}

type PingRequest struct {
	Reply chan struct{}
}

func (r *PingRequest) exec(e *Engine) {
	r.Reply <- struct{}{}
}

// StopRequest performs a final commit and then tells the run loop to
// return.
type StopRequest struct {
	Reply chan CommitReply
}

func (r *StopRequest) exec(e *Engine) {
	summary, err := e.mgr.Commit(e.catalogPath, e.manifestPath, e.reflogPath)
	e.stopping = true
	r.Reply <- CommitReply{summary, err}
}

// ErrReply is the reply shape for operations whose only interesting
// outcome is success or failure.
type ErrReply struct {
	Err error
}
