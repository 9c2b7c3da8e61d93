package workspace

import (
	"testing"

	"github.com/sedimentfs/sedimentfs/internal/catalog"
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/manifest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	c := catalog.NewMem()
	s := store.NewMem(1 << 20)
	mgr, err := NewManager(c, s, &manifest.Manifest{})
	if err != nil {
		t.Fatal(err)
	}
	return mgr
}

func TestManagerRootExists(t *testing.T) {
	mgr := newTestManager(t)
	attrs, err := mgr.GetAttr(inode.RootIndex)
	if err != nil {
		t.Fatal(err)
	}
	if attrs.Kind != inode.Directory {
		t.Fatalf("root Kind = %v, want Directory", attrs.Kind)
	}
}

func TestManagerRootHasDotEntries(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.OpenDir(inode.RootIndex); err != nil {
		t.Fatal(err)
	}
	entries, err := mgr.ReadDir(inode.RootIndex)
	if err != nil {
		t.Fatal(err)
	}
	byName := map[string]uint64{}
	for _, e := range entries {
		byName[e.Name] = e.Index
	}
	if byName["."] != inode.RootIndex {
		t.Fatalf(`root "." = %d, want %d`, byName["."], inode.RootIndex)
	}
	if byName[".."] != inode.RootIndex {
		t.Fatalf(`root ".." = %d, want %d (root is its own parent)`, byName[".."], inode.RootIndex)
	}
}

func TestManagerCreateLookupRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	created, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 1000, 1000)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := mgr.Lookup(inode.RootIndex, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.Index != created.Index {
		t.Fatalf("Lookup = (%+v, %v), want index %d", got, ok, created.Index)
	}
}

func TestManagerLookupMissIsNotAnError(t *testing.T) {
	mgr := newTestManager(t)
	_, ok, err := mgr.Lookup(inode.RootIndex, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected miss")
	}
}

func TestManagerWriteReadFile(t *testing.T) {
	mgr := newTestManager(t)
	attrs, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.OpenFile(attrs.Index, true); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.WriteData(attrs.Index, 0, []byte("hello\n")); err != nil {
		t.Fatal(err)
	}
	got, err := mgr.ReadData(attrs.Index, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\n" {
		t.Fatalf("ReadData = %q, want %q", got, "hello\n")
	}
	attrs, err = mgr.GetAttr(attrs.Index)
	if err != nil {
		t.Fatal(err)
	}
	if attrs.Size != 6 {
		t.Fatalf("Size = %d, want 6", attrs.Size)
	}
}

func TestManagerSetAttrSizeTruncatesFile(t *testing.T) {
	mgr := newTestManager(t)
	attrs, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.OpenFile(attrs.Index, true); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.WriteData(attrs.Index, 0, []byte("hello world")); err != nil {
		t.Fatal(err)
	}
	newSize := uint64(5)
	if _, err := mgr.SetAttr(attrs.Index, inode.FileAttributeChanges{Size: &newSize}); err != nil {
		t.Fatal(err)
	}
	got, err := mgr.ReadData(attrs.Index, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadData after truncate = %q, want %q", got, "hello")
	}
}

func TestManagerCreateDirHasDotEntries(t *testing.T) {
	mgr := newTestManager(t)
	attrs, err := mgr.CreateDir(inode.RootIndex, "sub", 0o755, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.OpenDir(attrs.Index); err != nil {
		t.Fatal(err)
	}
	entries, err := mgr.ReadDir(attrs.Index)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	if !names["."] || !names[".."] {
		t.Fatalf("entries = %+v, want . and ..", entries)
	}
}

func TestManagerCreateDuplicateNameFails(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0); err == nil {
		t.Fatal("expected ErrExists")
	}
}

func TestManagerRemove(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Remove(inode.RootIndex, "a.txt"); err != nil {
		t.Fatal(err)
	}
	_, ok, err := mgr.Lookup(inode.RootIndex, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected entry to be gone after Remove")
	}
}

func TestManagerRmdirRequiresEmpty(t *testing.T) {
	mgr := newTestManager(t)
	dir, err := mgr.CreateDir(inode.RootIndex, "sub", 0o755, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CreateFile(dir.Index, "a.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Rmdir(inode.RootIndex, "sub"); err == nil {
		t.Fatal("expected ErrNotEmpty")
	}
	if err := mgr.Remove(dir.Index, "a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Rmdir(inode.RootIndex, "sub"); err != nil {
		t.Fatalf("Rmdir on empty dir failed: %v", err)
	}
}

func TestManagerRenameMoves(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	dst, err := mgr.CreateDir(inode.RootIndex, "sub", 0o755, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := mgr.Rename(inode.RootIndex, "a.txt", dst.Index, "b.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := mgr.Lookup(inode.RootIndex, "a.txt"); ok {
		t.Fatal("a.txt should no longer exist at root")
	}
	if _, ok, _ := mgr.Lookup(dst.Index, "b.txt"); !ok {
		t.Fatal("b.txt should exist under sub")
	}
}

func TestManagerRenameClobbersRegularFile(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.CreateFile(inode.RootIndex, "a.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CreateFile(inode.RootIndex, "b.txt", 0o644, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Rename(inode.RootIndex, "a.txt", inode.RootIndex, "b.txt"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := mgr.Lookup(inode.RootIndex, "a.txt"); ok {
		t.Fatal("a.txt should no longer exist")
	}
	if _, ok, _ := mgr.Lookup(inode.RootIndex, "b.txt"); !ok {
		t.Fatal("b.txt should exist, clobbered by rename")
	}
}

func TestManagerRenameRejectsDirectoryClobber(t *testing.T) {
	mgr := newTestManager(t)
	if _, err := mgr.CreateDir(inode.RootIndex, "a", 0o755, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.CreateDir(inode.RootIndex, "b", 0o755, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Rename(inode.RootIndex, "a", inode.RootIndex, "b"); err == nil {
		t.Fatal("expected ErrUnsupportedRename")
	}
}
