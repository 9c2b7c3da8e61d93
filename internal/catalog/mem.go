package catalog

import (
	"sync"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/inode"
)

// memCatalog is an in-memory Catalog. Every method holds mu, so it is
// safe for concurrent use, although the engine only ever calls it from
// its single request-loop goroutine (§5).
type memCatalog struct {
	mu         sync.Mutex
	maxIndex   uint64
	inodes     map[uint64]inode.INode
	dirEntries map[uint64]map[string]inode.DirEntry
}

// NewMem returns an empty in-memory Catalog.
func NewMem() Catalog {
	return &memCatalog{
		inodes:     make(map[uint64]inode.INode),
		dirEntries: make(map[uint64]map[string]inode.DirEntry),
	}
}

func (c *memCatalog) MaxIndex() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxIndex
}

func (c *memCatalog) Inode(i uint64) (inode.INode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ino, ok := c.inodes[i]
	if !ok {
		return inode.INode{}, xerrors.Errorf("catalog: inode %d: %w", i, ErrInodeNotFound)
	}
	return ino, nil
}

func (c *memCatalog) DirEntryIndex(parent uint64, name string) (uint64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.dirEntries[parent]
	if !ok {
		return 0, false, nil
	}
	e, ok := entries[name]
	if !ok {
		return 0, false, nil
	}
	return e.Index, true, nil
}

func (c *memCatalog) DirEntries(parent uint64) ([]inode.DirEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.dirEntries[parent]
	out := make([]inode.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out, nil
}

func (c *memCatalog) AddInode(ino inode.INode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inodes[ino.Attributes.Index] = ino
	if ino.Attributes.Index > c.maxIndex {
		c.maxIndex = ino.Attributes.Index
	}
	return nil
}

func (c *memCatalog) AddDirEntry(parent uint64, name string, child uint64, childType inode.FileType) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.dirEntries[parent]
	if !ok {
		entries = make(map[string]inode.DirEntry)
		c.dirEntries[parent] = entries
	}
	entries[name] = inode.DirEntry{Index: child, Name: name, EntryType: childType}
	ino, ok := c.inodes[child]
	if ok {
		ino.Attributes.Nlink++
		c.inodes[child] = ino
	}
	return nil
}

func (c *memCatalog) RemoveDirEntry(parent uint64, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.dirEntries[parent]
	if !ok {
		return nil
	}
	delete(entries, name)
	return nil
}

func (c *memCatalog) RemoveInode(i uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inodes, i)
	delete(c.dirEntries, i)
	return nil
}

func (c *memCatalog) Close() error { return nil }
