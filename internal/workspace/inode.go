package workspace

import "github.com/sedimentfs/sedimentfs/internal/inode"

// INodeWorkspace caches one inode's attributes in memory, tracking
// whether they differ from the last value written to the catalog.
type INodeWorkspace struct {
	attrs inode.FileAttributes
	dirty bool
}

// NewINodeWorkspace wraps the catalog's current attributes for an inode.
func NewINodeWorkspace(attrs inode.FileAttributes) *INodeWorkspace {
	return &INodeWorkspace{attrs: attrs}
}

// Attributes returns the cached attributes.
func (w *INodeWorkspace) Attributes() inode.FileAttributes { return w.attrs }

// SetAttributes replaces the cached attributes and marks the workspace
// dirty.
func (w *INodeWorkspace) SetAttributes(attrs inode.FileAttributes) {
	w.attrs = attrs
	w.dirty = true
}

// Dirty reports whether the attributes differ from the catalog.
func (w *INodeWorkspace) Dirty() bool { return w.dirty }

// ClearDirty resets the dirty flag after a successful commit.
func (w *INodeWorkspace) ClearDirty() { w.dirty = false }
