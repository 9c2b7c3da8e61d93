package workspace

import (
	"bytes"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
)

// readCatalogFile reads the durable catalog's own backing file so it can
// be hashed and stored as an opaque content-addressed chunk (step 7).
func readCatalogFile(path string) (*bytes.Reader, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// CommitSummary reports what a commit actually did, mostly for logging
// and for the control socket's "commit" response.
type CommitSummary struct {
	Empty         bool
	FilesFlushed  int
	DirsWritten   int
	InodesWritten int
	InodesPruned  int
	RootHash      digest.Digest
	ManifestPath  string
	ReflogPath    string
}

// Commit runs the eight-step commit protocol described for the workspace
// manager: prune deleted indices, flush dirty file content through the
// store's chunker, update affected inode records, write dirty
// directories and inodes to the catalog, hash and store the catalog file
// itself, append the previous root to the reflog, and atomically publish
// a new manifest.
//
// catalogPath is the path to the durable catalog's own backing file (the
// opaque blob hashed in step 7); manifestPath/reflogPath are the special
// file names passed to the store.
func (m *Manager) Commit(catalogPath, manifestPath, reflogPath string) (CommitSummary, error) {
	if !m.dirty {
		return CommitSummary{Empty: true}, nil
	}

	// Step 2: prune.
	prunedCount := len(m.deleted)
	for idx := range m.deleted {
		delete(m.files, idx)
		delete(m.dirs, idx)
		delete(m.inodes, idx)
		for _, d := range m.dirs {
			d.RemoveEntryIdx(idx)
		}
		if err := m.catalog.RemoveInode(idx); err != nil {
			return CommitSummary{}, xerrors.Errorf("workspace: commit: pruning inode %d: %w", idx, err)
		}
	}

	// Step 3 + 4: flush dirty file content, update affected inodes.
	var toClear []uint64
	for idx, fw := range m.files {
		if !fw.Dirty() {
			continue
		}
		r, err := fw.Reconstruct()
		if err != nil {
			return CommitSummary{}, xerrors.Errorf("workspace: commit: reconstructing file %d: %w", idx, err)
		}
		chunks, err := m.store.PutFileChunked(r)
		if err != nil {
			return CommitSummary{}, xerrors.Errorf("workspace: commit: storing file %d: %w", idx, err)
		}
		iw, err := m.getInode(idx)
		if err != nil {
			return CommitSummary{}, xerrors.Errorf("workspace: commit: inode %d for flushed file: %w", idx, err)
		}
		attrs := iw.Attributes()
		attrs.Size = fw.Size()
		iw.SetAttributes(attrs)
		m.pendingInodeChunks(idx, chunks)
		fw.ClearDirty()
		toClear = append(toClear, idx)
	}

	// Step 6 (ahead of step 5): write dirty inodes first, so that any
	// inode created in this same commit already exists in the catalog by
	// the time add_dir_entry (step 5) tries to increment its Nlink —
	// add_dir_entry silently no-ops the Nlink bump for an unknown child,
	// the same ordering dependency the original commit routine has.
	inodesWritten := 0
	for idx, iw := range m.inodes {
		if !iw.Dirty() {
			continue
		}
		ino := inode.INode{Attributes: iw.Attributes(), Chunks: m.takePendingChunks(idx)}
		if err := m.catalog.AddInode(ino); err != nil {
			return CommitSummary{}, xerrors.Errorf("workspace: commit: writing inode %d: %w", idx, err)
		}
		iw.ClearDirty()
		inodesWritten++
	}

	// Step 5: write dirty directories.
	dirsWritten := 0
	for parent, d := range m.dirs {
		if !d.Dirty() {
			continue
		}
		for _, e := range d.EntriesTuple() {
			if err := m.catalog.AddDirEntry(parent, e.Name, e.Index, e.EntryType); err != nil {
				return CommitSummary{}, xerrors.Errorf("workspace: commit: writing dir entry %d/%q: %w", parent, e.Name, err)
			}
		}
		d.ClearDirty()
		dirsWritten++
	}

	// Step 7: finalize — hash the catalog's own backing file, append the
	// previous root to the reflog, publish a new manifest.
	catalogBytes, err := readCatalogFile(catalogPath)
	if err != nil {
		return CommitSummary{}, xerrors.Errorf("workspace: commit: reading catalog file: %w", err)
	}
	desc, err := m.store.PutFile(catalogBytes)
	if err != nil {
		return CommitSummary{}, xerrors.Errorf("workspace: commit: storing catalog snapshot: %w", err)
	}
	if err := manifest.AppendReflog(m.store, reflogPath, m.manifest.RootHash); err != nil {
		return CommitSummary{}, xerrors.Errorf("workspace: commit: appending reflog: %w", err)
	}
	next := m.manifest.Next(desc.Digest, time.Now().UTC())
	if err := m.store.WriteSpecialFile(manifestPath, next.Encode(), false); err != nil {
		return CommitSummary{}, xerrors.Errorf("workspace: commit: publishing manifest: %w", err)
	}
	*m.manifest = next

	// Step 8: cleanup.
	for _, idx := range toClear {
		delete(m.files, idx)
	}
	m.deleted = make(map[uint64]struct{})
	m.dirty = false

	log.Printf("workspace: commit complete: root=%s files=%d dirs=%d inodes=%d pruned=%d",
		desc.Digest, len(toClear), dirsWritten, inodesWritten, prunedCount)

	return CommitSummary{
		FilesFlushed:  len(toClear),
		DirsWritten:   dirsWritten,
		InodesWritten: inodesWritten,
		InodesPruned:  prunedCount,
		RootHash:      desc.Digest,
		ManifestPath:  manifestPath,
		ReflogPath:    reflogPath,
	}, nil
}
