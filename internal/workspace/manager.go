// Package workspace implements the mutable, in-memory working set that
// sits between the durable catalog/store and the engine's request API:
// directory workspaces, file workspaces (the piece table), inode
// workspaces, and the manager that ties them together and commits them.
package workspace

import (
	"time"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/catalog"
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

// Manager is the single mutable owner of the catalog, the store, and all
// open workspaces. It is built to be driven exclusively by one goroutine
// (the engine's request loop); it holds no internal locks.
type Manager struct {
	catalog catalog.Catalog
	store   store.Store
	indices *IndexGenerator

	dirs    map[uint64]*DirWorkspace
	files   map[uint64]*FileWorkspace
	inodes  map[uint64]*INodeWorkspace
	deleted map[uint64]struct{}

	// pendingChunks holds the new chunk list for a file flushed during
	// the current commit, between step 3 (flush) and step 6 (write
	// inodes), keyed by inode index.
	pendingChunks map[uint64][]inode.ChunkDescriptor

	manifest *manifest.Manifest
	dirty    bool
}

func (m *Manager) pendingInodeChunks(idx uint64, chunks []inode.ChunkDescriptor) {
	if m.pendingChunks == nil {
		m.pendingChunks = make(map[uint64][]inode.ChunkDescriptor)
	}
	m.pendingChunks[idx] = chunks
}

// takePendingChunks returns idx's pending chunk list, if any, falling
// back to its existing catalog chunks (for inodes whose attributes
// changed but whose content did not).
func (m *Manager) takePendingChunks(idx uint64) []inode.ChunkDescriptor {
	if chunks, ok := m.pendingChunks[idx]; ok {
		delete(m.pendingChunks, idx)
		return chunks
	}
	ino, err := m.catalog.Inode(idx)
	if err != nil {
		return nil
	}
	return ino.Chunks
}

// NewManager builds a Manager around an already-open catalog and store.
// If the catalog has no root inode yet, one is created.
func NewManager(c catalog.Catalog, s store.Store, m *manifest.Manifest) (*Manager, error) {
	mgr := &Manager{
		catalog:  c,
		store:    s,
		indices:  NewIndexGenerator(c.MaxIndex()),
		dirs:     make(map[uint64]*DirWorkspace),
		files:    make(map[uint64]*FileWorkspace),
		inodes:   make(map[uint64]*INodeWorkspace),
		deleted:  make(map[uint64]struct{}),
		manifest: m,
	}
	if _, err := c.Inode(inode.RootIndex); err != nil {
		now := time.Now().UTC()
		root := inode.INode{Attributes: inode.FileAttributes{
			Index: inode.RootIndex,
			Kind:  inode.Directory,
			Perm:  0o755,
			Nlink: 2,
			Atime: now, Mtime: now, Ctime: now, Crtime: now,
		}}
		if err := c.AddInode(root); err != nil {
			return nil, xerrors.Errorf("workspace: seeding root inode: %w", err)
		}
		d := NewDirWorkspace(nil)
		d.AddEntry(inode.DirEntry{Index: inode.RootIndex, Name: ".", EntryType: inode.Directory})
		d.AddEntry(inode.DirEntry{Index: inode.RootIndex, Name: "..", EntryType: inode.Directory})
		mgr.dirs[inode.RootIndex] = d
		mgr.dirty = true
		if mgr.indices.next < inode.RootIndex {
			mgr.indices = NewIndexGenerator(inode.RootIndex)
		}
	}
	return mgr, nil
}

// Dirty reports whether any uncommitted mutation is pending.
func (m *Manager) Dirty() bool { return m.dirty }

func (m *Manager) getInode(index uint64) (*INodeWorkspace, error) {
	if w, ok := m.inodes[index]; ok {
		return w, nil
	}
	ino, err := m.catalog.Inode(index)
	if err != nil {
		return nil, xerrors.Errorf("workspace: inode %d: %w", index, ErrInodeLookup)
	}
	w := NewINodeWorkspace(ino.Attributes)
	m.inodes[index] = w
	return w, nil
}

// GetAttr returns the current attributes of inode index.
func (m *Manager) GetAttr(index uint64) (inode.FileAttributes, error) {
	w, err := m.getInode(index)
	if err != nil {
		return inode.FileAttributes{}, err
	}
	return w.Attributes(), nil
}

// SetAttr applies changes to inode index's attributes. If Size is among
// the changes, the corresponding file workspace (which must already be
// open) is truncated to match.
func (m *Manager) SetAttr(index uint64, changes inode.FileAttributeChanges) (inode.FileAttributes, error) {
	w, err := m.getInode(index)
	if err != nil {
		return inode.FileAttributes{}, err
	}
	attrs := w.Attributes()
	if changes.Apply(&attrs) {
		fw, ok := m.files[index]
		if !ok {
			return inode.FileAttributes{}, xerrors.Errorf("workspace: setattr size on unopened file %d: %w", index, ErrNotRegularFile)
		}
		fw.Truncate(attrs.Size)
	}
	w.SetAttributes(attrs)
	m.dirty = true
	return attrs, nil
}

func (m *Manager) dirEntries(parent uint64) ([]inode.DirEntry, error) {
	if d, ok := m.dirs[parent]; ok {
		return d.EntriesTuple(), nil
	}
	return m.catalog.DirEntries(parent)
}

// Lookup resolves name within parent, preferring an already-open
// DirWorkspace over the catalog. A miss is reported via ok=false, never
// as an error.
func (m *Manager) Lookup(parent uint64, name string) (inode.FileAttributes, bool, error) {
	var idx uint64
	var found bool
	if d, ok := m.dirs[parent]; ok {
		idx, found = d.EntryIndex(name)
	} else {
		var err error
		idx, found, err = m.catalog.DirEntryIndex(parent, name)
		if err != nil {
			return inode.FileAttributes{}, false, xerrors.Errorf("workspace: lookup(%d, %q): %w", parent, name, err)
		}
	}
	if !found {
		return inode.FileAttributes{}, false, nil
	}
	attrs, err := m.GetAttr(idx)
	if err != nil {
		return inode.FileAttributes{}, false, err
	}
	return attrs, true, nil
}

// OpenDir loads a DirWorkspace for index from the catalog if not already
// cached. Idempotent.
func (m *Manager) OpenDir(index uint64) error {
	if _, ok := m.dirs[index]; ok {
		return nil
	}
	attrs, err := m.GetAttr(index)
	if err != nil {
		return err
	}
	if attrs.Kind != inode.Directory {
		return xerrors.Errorf("workspace: open_dir(%d): %w", index, ErrNotDirectory)
	}
	entries, err := m.catalog.DirEntries(index)
	if err != nil {
		return xerrors.Errorf("workspace: open_dir(%d): %w", index, err)
	}
	m.dirs[index] = NewDirWorkspace(entries)
	return nil
}

// ReleaseDir is a no-op: directory workspaces stay cached for the
// manager's lifetime; commit drops only those of deleted inodes.
func (m *Manager) ReleaseDir(index uint64) {}

// ReadDir returns the open DirWorkspace's entries in stable order.
func (m *Manager) ReadDir(index uint64) ([]inode.DirEntry, error) {
	d, ok := m.dirs[index]
	if !ok {
		return nil, xerrors.Errorf("workspace: read_dir(%d): directory not open: %w", index, ErrNotDirectory)
	}
	return d.EntriesTuple(), nil
}

// OpenFile loads a FileWorkspace for index from the catalog if not
// already cached. write rejects the open with ErrAccess if the caller
// requested write access on a mount that disallows it; sedimentfs has no
// read-only mount mode today, so this always succeeds, mirroring the
// spec's reservation of the check for a future read-only mode.
func (m *Manager) OpenFile(index uint64, write bool) error {
	if _, ok := m.files[index]; ok {
		return nil
	}
	attrs, err := m.GetAttr(index)
	if err != nil {
		return err
	}
	if attrs.Kind != inode.RegularFile {
		return xerrors.Errorf("workspace: open_file(%d): %w", index, ErrNotRegularFile)
	}
	ino, err := m.catalog.Inode(index)
	if err != nil {
		return xerrors.Errorf("workspace: open_file(%d): %w", index, err)
	}
	m.files[index] = NewFileWorkspace(m.store, ino.Chunks)
	return nil
}

// ReadData delegates to the open file workspace's Read.
func (m *Manager) ReadData(index uint64, offset uint64, n int) ([]byte, error) {
	fw, ok := m.files[index]
	if !ok {
		return nil, xerrors.Errorf("workspace: read_data(%d): file not open: %w", index, ErrNotRegularFile)
	}
	return fw.Read(offset, n)
}

// WriteData delegates to the open file workspace's Write, then updates
// the cached inode's size if it changed and marks both workspaces dirty.
func (m *Manager) WriteData(index uint64, offset uint64, buf []byte) (uint32, error) {
	fw, ok := m.files[index]
	if !ok {
		return 0, xerrors.Errorf("workspace: write_data(%d): file not open: %w", index, ErrNotRegularFile)
	}
	iw, err := m.getInode(index)
	if err != nil {
		return 0, err
	}
	n, newSize := fw.Write(offset, buf)
	attrs := iw.Attributes()
	attrs.Size = newSize
	iw.SetAttributes(attrs)
	m.dirty = true
	return n, nil
}

// ReleaseFile unloads the file workspace's cached lower chunks.
func (m *Manager) ReleaseFile(index uint64) {
	if fw, ok := m.files[index]; ok {
		fw.Unload()
	}
}

func (m *Manager) nextIndex() (uint64, error) {
	return m.indices.Next()
}

// CreateFile allocates a new regular-file inode, opens an empty file
// workspace for it, and links it into parent under name.
func (m *Manager) CreateFile(parent uint64, name string, perm uint16, uid, gid uint32) (inode.FileAttributes, error) {
	return m.create(parent, name, inode.RegularFile, perm, uid, gid)
}

// CreateDir allocates a new directory inode (with "." and ".." entries)
// and links it into parent under name.
func (m *Manager) CreateDir(parent uint64, name string, perm uint16, uid, gid uint32) (inode.FileAttributes, error) {
	attrs, err := m.create(parent, name, inode.Directory, perm, uid, gid)
	if err != nil {
		return inode.FileAttributes{}, err
	}
	d := NewDirWorkspace(nil)
	d.AddEntry(inode.DirEntry{Index: attrs.Index, Name: ".", EntryType: inode.Directory})
	d.AddEntry(inode.DirEntry{Index: parent, Name: "..", EntryType: inode.Directory})
	m.dirs[attrs.Index] = d
	return attrs, nil
}

func (m *Manager) create(parent uint64, name string, kind inode.FileType, perm uint16, uid, gid uint32) (inode.FileAttributes, error) {
	if err := m.OpenDir(parent); err != nil {
		return inode.FileAttributes{}, err
	}
	if _, exists := m.dirs[parent].Entry(name); exists {
		return inode.FileAttributes{}, xerrors.Errorf("workspace: create(%d, %q): %w", parent, name, ErrExists)
	}
	idx, err := m.nextIndex()
	if err != nil {
		return inode.FileAttributes{}, err
	}
	now := time.Now().UTC()
	attrs := inode.FileAttributes{
		Index: idx,
		Kind:  kind,
		Perm:  perm,
		Uid:   uid,
		Gid:   gid,
		Nlink: 1,
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
	}
	if kind == inode.Directory {
		attrs.Nlink = 2
	}
	m.inodes[idx] = NewINodeWorkspace(attrs)
	m.inodes[idx].dirty = true
	if kind == inode.RegularFile {
		m.files[idx] = NewFileWorkspace(m.store, nil)
	}
	m.dirs[parent].AddEntry(inode.DirEntry{Index: idx, Name: name, EntryType: kind})
	m.dirty = true
	return attrs, nil
}

// Remove unlinks name from parent, scheduling its inode for removal at
// the next commit. The entry's type is not checked.
func (m *Manager) Remove(parent uint64, name string) error {
	return m.unlink(parent, name)
}

// Rmdir unlinks a directory entry from parent. The target must be empty.
func (m *Manager) Rmdir(parent uint64, name string) error {
	if err := m.OpenDir(parent); err != nil {
		return err
	}
	e, ok := m.dirs[parent].Entry(name)
	if !ok {
		return xerrors.Errorf("workspace: rmdir(%d, %q): %w", parent, name, ErrDirEntryLookup)
	}
	if err := m.OpenDir(e.Index); err != nil {
		return err
	}
	if !m.dirs[e.Index].IsEmpty() {
		return xerrors.Errorf("workspace: rmdir(%d, %q): %w", parent, name, ErrNotEmpty)
	}
	return m.unlink(parent, name)
}

func (m *Manager) unlink(parent uint64, name string) error {
	if err := m.OpenDir(parent); err != nil {
		return err
	}
	e, ok := m.dirs[parent].RemoveEntry(name)
	if !ok {
		return xerrors.Errorf("workspace: unlink(%d, %q): %w", parent, name, ErrDirEntryLookup)
	}
	m.deleted[e.Index] = struct{}{}
	m.dirty = true
	return nil
}

// Rename moves name from oldParent to newName under newParent. If
// newName already exists in newParent and names a regular file, it is
// removed first (same handling as Remove). Clobbering a directory or any
// other non-regular-file entry returns ErrUnsupportedRename.
func (m *Manager) Rename(oldParent uint64, oldName string, newParent uint64, newName string) error {
	if err := m.OpenDir(oldParent); err != nil {
		return err
	}
	if err := m.OpenDir(newParent); err != nil {
		return err
	}
	src, ok := m.dirs[oldParent].Entry(oldName)
	if !ok {
		return xerrors.Errorf("workspace: rename(%d, %q): %w", oldParent, oldName, ErrDirEntryLookup)
	}
	if dst, exists := m.dirs[newParent].Entry(newName); exists {
		if dst.EntryType != inode.RegularFile {
			return xerrors.Errorf("workspace: rename onto %q: %w", newName, ErrUnsupportedRename)
		}
		if err := m.unlink(newParent, newName); err != nil {
			return err
		}
	}
	m.dirs[oldParent].RemoveEntry(oldName)
	m.dirs[newParent].AddEntry(inode.DirEntry{Index: src.Index, Name: newName, EntryType: src.EntryType})
	m.dirty = true
	return nil
}
