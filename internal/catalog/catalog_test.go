package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sedimentfs/sedimentfs/internal/inode"
)

func backends(t *testing.T) map[string]func() Catalog {
	t.Helper()
	return map[string]func() Catalog{
		"mem": func() Catalog { return NewMem() },
		"bolt": func() Catalog {
			dir := t.TempDir()
			c, err := Open(filepath.Join(dir, "catalog.db"))
			if err != nil {
				t.Fatal(err)
			}
			return c
		},
	}
}

func mkInode(i uint64, kind inode.FileType) inode.INode {
	return inode.INode{
		Attributes: inode.FileAttributes{
			Index: i,
			Kind:  kind,
			Mtime: time.Unix(1000, 0).UTC(),
		},
	}
}

func TestCatalogDurability(t *testing.T) {
	for name, newC := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := newC()
			defer c.Close()

			if err := c.AddInode(mkInode(2, inode.RegularFile)); err != nil {
				t.Fatal(err)
			}
			if err := c.AddDirEntry(1, "a.txt", 2, inode.RegularFile); err != nil {
				t.Fatal(err)
			}

			got, err := c.Inode(2)
			if err != nil {
				t.Fatal(err)
			}
			if got.Attributes.Index != 2 {
				t.Fatalf("Inode(2).Index = %d, want 2", got.Attributes.Index)
			}
			idx, ok, err := c.DirEntryIndex(1, "a.txt")
			if err != nil {
				t.Fatal(err)
			}
			if !ok || idx != 2 {
				t.Fatalf("DirEntryIndex(1, a.txt) = (%d, %v), want (2, true)", idx, ok)
			}
		})
	}
}

func TestMaxIndexMonotonic(t *testing.T) {
	for name, newC := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := newC()
			defer c.Close()

			indices := []uint64{2, 5, 3, 9, 4}
			var want uint64
			for _, i := range indices {
				if err := c.AddInode(mkInode(i, inode.RegularFile)); err != nil {
					t.Fatal(err)
				}
				if i > want {
					want = i
				}
				if got := c.MaxIndex(); got != want {
					t.Fatalf("after adding %d: MaxIndex() = %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestNlinkIncrementsPerDirEntry(t *testing.T) {
	for name, newC := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := newC()
			defer c.Close()

			if err := c.AddInode(mkInode(2, inode.RegularFile)); err != nil {
				t.Fatal(err)
			}
			const k = 3
			for i := 0; i < k; i++ {
				if err := c.AddDirEntry(1, "name", 2, inode.RegularFile); err != nil {
					t.Fatal(err)
				}
			}
			got, err := c.Inode(2)
			if err != nil {
				t.Fatal(err)
			}
			if got.Attributes.Nlink != k {
				t.Fatalf("Nlink = %d, want %d", got.Attributes.Nlink, k)
			}
		})
	}
}

func TestRemoveInodeAndDirEntry(t *testing.T) {
	for name, newC := range backends(t) {
		t.Run(name, func(t *testing.T) {
			c := newC()
			defer c.Close()

			if err := c.AddInode(mkInode(2, inode.RegularFile)); err != nil {
				t.Fatal(err)
			}
			if err := c.AddDirEntry(1, "a.txt", 2, inode.RegularFile); err != nil {
				t.Fatal(err)
			}
			if err := c.RemoveDirEntry(1, "a.txt"); err != nil {
				t.Fatal(err)
			}
			if _, ok, err := c.DirEntryIndex(1, "a.txt"); err != nil || ok {
				t.Fatalf("entry still present after removal: ok=%v err=%v", ok, err)
			}
			if err := c.RemoveInode(2); err != nil {
				t.Fatal(err)
			}
			if _, err := c.Inode(2); err == nil {
				t.Fatal("expected error fetching removed inode")
			}
		})
	}
}
