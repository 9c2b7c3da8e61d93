package workspace

import (
	"sort"

	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// DirWorkspace is the mutable, in-memory view of one directory's entries,
// kept sorted by child index so ReadDir produces a stable order across
// calls within the same session.
type DirWorkspace struct {
	entries []inode.DirEntry
	dirty   bool
}

// NewDirWorkspace builds a DirWorkspace from the catalog's current
// entries for a directory.
func NewDirWorkspace(entries []inode.DirEntry) *DirWorkspace {
	d := &DirWorkspace{entries: append([]inode.DirEntry(nil), entries...)}
	d.sort()
	return d
}

func (d *DirWorkspace) sort() {
	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].Index < d.entries[j].Index })
}

// Dirty reports whether the directory has been modified since it was
// loaded or last committed.
func (d *DirWorkspace) Dirty() bool { return d.dirty }

// ClearDirty resets the dirty flag after a successful commit.
func (d *DirWorkspace) ClearDirty() { d.dirty = false }

// Entry looks up a child by name.
func (d *DirWorkspace) Entry(name string) (inode.DirEntry, bool) {
	for _, e := range d.entries {
		if e.Name == name {
			return e, true
		}
	}
	return inode.DirEntry{}, false
}

// EntryIndex looks up a child's index by name.
func (d *DirWorkspace) EntryIndex(name string) (uint64, bool) {
	e, ok := d.Entry(name)
	return e.Index, ok
}

// AddEntry inserts or replaces a child entry, keeping entries sorted by
// index, and marks the workspace dirty.
func (d *DirWorkspace) AddEntry(e inode.DirEntry) {
	for i, existing := range d.entries {
		if existing.Name == e.Name {
			d.entries[i] = e
			d.sort()
			d.dirty = true
			return
		}
	}
	d.entries = append(d.entries, e)
	d.sort()
	d.dirty = true
}

// RemoveEntry deletes a child by name. It reports whether a matching
// entry was found.
func (d *DirWorkspace) RemoveEntry(name string) (inode.DirEntry, bool) {
	for i, e := range d.entries {
		if e.Name == name {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			d.dirty = true
			return e, true
		}
	}
	return inode.DirEntry{}, false
}

// RemoveEntryIdx deletes every child entry pointing at inode index idx
// (used when purging dangling entries for a deleted inode).
func (d *DirWorkspace) RemoveEntryIdx(idx uint64) {
	out := d.entries[:0]
	for _, e := range d.entries {
		if e.Index != idx {
			out = append(out, e)
		}
	}
	if len(out) != len(d.entries) {
		d.dirty = true
	}
	d.entries = out
}

// EntriesTuple returns the directory's entries in their stable sorted
// order, as (index, name, type) tuples suitable for readdir.
func (d *DirWorkspace) EntriesTuple() []inode.DirEntry {
	return append([]inode.DirEntry(nil), d.entries...)
}

// IsEmpty reports whether the directory has no entries besides the
// mandatory "." and ".." (Rmdir precondition).
func (d *DirWorkspace) IsEmpty() bool {
	for _, e := range d.entries {
		if e.Name != "." && e.Name != ".." {
			return false
		}
	}
	return true
}
