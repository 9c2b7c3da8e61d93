// Package engine serializes every operation against the workspace
// manager through a single consumer goroutine reading a bounded request
// queue, exactly as described for the core filesystem engine: one
// request processed to completion before the next begins, with an
// optional auto-commit timer and graceful shutdown via a final commit.
package engine

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/catalog"
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
	"github.com/sedimentfs/sedimentfs/internal/store"
	"github.com/sedimentfs/sedimentfs/internal/workspace"
)

// defaultQueueDepth bounds the engine's request channel. A producer that
// fills the queue blocks on send (backpressure), per the concurrency
// model's suspension points.
const defaultQueueDepth = 64

// Engine owns the workspace manager exclusively and is the only
// goroutine that ever calls its methods.
type Engine struct {
	mgr      *workspace.Manager
	requests chan request
	stopping bool

	catalogPath  string
	manifestPath string
	reflogPath   string

	autoCommitInterval time.Duration
}

// Options configures a new Engine.
type Options struct {
	Catalog      catalog.Catalog
	Store        store.Store
	Manifest     *manifest.Manifest
	CatalogPath  string
	ManifestPath string
	ReflogPath   string

	// QueueDepth overrides defaultQueueDepth when non-zero.
	QueueDepth int
	// AutoCommitInterval, if non-zero, enables the auto-commit timer.
	AutoCommitInterval time.Duration
}

// New builds an Engine around a fresh workspace.Manager. The engine does
// not start consuming requests until Run is called.
func New(opts Options) (*Engine, error) {
	mgr, err := workspace.NewManager(opts.Catalog, opts.Store, opts.Manifest)
	if err != nil {
		return nil, xerrors.Errorf("engine: building workspace manager: %w", err)
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	return &Engine{
		mgr:                mgr,
		requests:           make(chan request, depth),
		catalogPath:        opts.CatalogPath,
		manifestPath:       opts.ManifestPath,
		reflogPath:         opts.ReflogPath,
		autoCommitInterval: opts.AutoCommitInterval,
	}, nil
}

// Run drives the engine's request loop until ctx is cancelled or a
// StopRequest is processed. It supervises the loop goroutine and, if
// configured, the auto-commit timer goroutine with an errgroup: a fatal
// error in either cancels both.
func (e *Engine) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		// Cancelling here, regardless of why this goroutine returns,
		// stops the auto-commit goroutine below — otherwise a graceful
		// StopRequest (a nil return, which errgroup does not treat as
		// group-cancelling) would leave it running forever.
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case req := <-e.requests:
				req.exec(e)
				if e.stopping {
					return nil
				}
			}
		}
	})

	if e.autoCommitInterval > 0 {
		eg.Go(func() error {
			ticker := time.NewTicker(e.autoCommitInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					reply := make(chan CommitReply, 1)
					select {
					case e.requests <- &CommitRequest{Reply: reply}:
					case <-ctx.Done():
						return nil
					}
					select {
					case r := <-reply:
						if r.Err != nil {
							log.Printf("engine: auto-commit failed: %v", r.Err)
						} else if !r.Summary.Empty {
							log.Printf("engine: auto-commit: root=%s", r.Summary.RootHash)
						}
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	err := eg.Wait()
	if xerrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) send(r request) {
	e.requests <- r
}

func (e *Engine) GetAttr(index uint64) (inode.FileAttributes, error) {
	reply := make(chan GetAttrReply, 1)
	e.send(&GetAttrRequest{Index: index, Reply: reply})
	r := <-reply
	return r.Attrs, r.Err
}

func (e *Engine) SetAttr(index uint64, changes inode.FileAttributeChanges) (inode.FileAttributes, error) {
	reply := make(chan SetAttrReply, 1)
	e.send(&SetAttrRequest{Index: index, Changes: changes, Reply: reply})
	r := <-reply
	return r.Attrs, r.Err
}

func (e *Engine) Lookup(parent uint64, name string) (inode.FileAttributes, bool, error) {
	reply := make(chan LookupReply, 1)
	e.send(&LookupRequest{Parent: parent, Name: name, Reply: reply})
	r := <-reply
	return r.Attrs, r.Found, r.Err
}

func (e *Engine) OpenDir(index uint64) error {
	reply := make(chan ErrReply, 1)
	e.send(&OpenDirRequest{Index: index, Reply: reply})
	return (<-reply).Err
}

func (e *Engine) ReleaseDir(index uint64) {
	reply := make(chan struct{}, 1)
	e.send(&ReleaseDirRequest{Index: index, Reply: reply})
	<-reply
}

func (e *Engine) ReadDir(index uint64) ([]inode.DirEntry, error) {
	reply := make(chan ReadDirReply, 1)
	e.send(&ReadDirRequest{Index: index, Reply: reply})
	r := <-reply
	return r.Entries, r.Err
}

func (e *Engine) OpenFile(index uint64, write bool) error {
	reply := make(chan ErrReply, 1)
	e.send(&OpenFileRequest{Index: index, Write: write, Reply: reply})
	return (<-reply).Err
}

func (e *Engine) ReadData(index uint64, offset uint64, size int) ([]byte, error) {
	reply := make(chan ReadDataReply, 1)
	e.send(&ReadDataRequest{Index: index, Offset: offset, Size: size, Reply: reply})
	r := <-reply
	return r.Data, r.Err
}

func (e *Engine) WriteData(index uint64, offset uint64, data []byte) (uint32, error) {
	reply := make(chan WriteDataReply, 1)
	e.send(&WriteDataRequest{Index: index, Offset: offset, Data: data, Reply: reply})
	r := <-reply
	return r.N, r.Err
}

func (e *Engine) ReleaseFile(index uint64) {
	reply := make(chan struct{}, 1)
	e.send(&ReleaseFileRequest{Index: index, Reply: reply})
	<-reply
}

func (e *Engine) CreateFile(parent uint64, name string, perm uint16, uid, gid uint32) (inode.FileAttributes, error) {
	reply := make(chan CreateReply, 1)
	e.send(&CreateFileRequest{Parent: parent, Name: name, Perm: perm, Uid: uid, Gid: gid, Reply: reply})
	r := <-reply
	return r.Attrs, r.Err
}

func (e *Engine) CreateDir(parent uint64, name string, perm uint16, uid, gid uint32) (inode.FileAttributes, error) {
	reply := make(chan CreateReply, 1)
	e.send(&CreateDirRequest{Parent: parent, Name: name, Perm: perm, Uid: uid, Gid: gid, Reply: reply})
	r := <-reply
	return r.Attrs, r.Err
}

func (e *Engine) Unlink(parent uint64, name string) error {
	reply := make(chan ErrReply, 1)
	e.send(&UnlinkRequest{Parent: parent, Name: name, Reply: reply})
	return (<-reply).Err
}

func (e *Engine) RemoveDir(parent uint64, name string) error {
	reply := make(chan ErrReply, 1)
	e.send(&RemoveDirRequest{Parent: parent, Name: name, Reply: reply})
	return (<-reply).Err
}

func (e *Engine) Rename(oldParent uint64, oldName string, newParent uint64, newName string) error {
	reply := make(chan ErrReply, 1)
	e.send(&RenameRequest{OldParent: oldParent, OldName: oldName, NewParent: newParent, NewName: newName, Reply: reply})
	return (<-reply).Err
}

func (e *Engine) Commit() (workspace.CommitSummary, error) {
	reply := make(chan CommitReply, 1)
	e.send(&CommitRequest{Reply: reply})
	r := <-reply
	return r.Summary, r.Err
}

func (e *Engine) Ping() {
	reply := make(chan struct{}, 1)
	e.send(&PingRequest{Reply: reply})
	<-reply
}

// Stop enqueues a final commit and asks the run loop to return. It
// blocks until that commit completes.
func (e *Engine) Stop() (workspace.CommitSummary, error) {
	reply := make(chan CommitReply, 1)
	e.send(&StopRequest{Reply: reply})
	r := <-reply
	return r.Summary, r.Err
}
