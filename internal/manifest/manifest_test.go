package manifest

import (
	"testing"
	"time"

	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	root := digest.Sum([]byte("root"))
	prev := digest.Sum([]byte("prev"))
	m := Manifest{
		RootHash:         root,
		PreviousRootHash: &prev,
		Timestamp:        time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC),
	}
	got, err := Decode(m.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.RootHash != m.RootHash {
		t.Fatalf("RootHash = %s, want %s", got.RootHash, m.RootHash)
	}
	if got.PreviousRootHash == nil || *got.PreviousRootHash != *m.PreviousRootHash {
		t.Fatalf("PreviousRootHash mismatch: got %v", got.PreviousRootHash)
	}
	if !got.Timestamp.Equal(m.Timestamp) {
		t.Fatalf("Timestamp = %s, want %s", got.Timestamp, m.Timestamp)
	}
}

func TestEncodeDecodeNoPreviousRoot(t *testing.T) {
	m := Manifest{RootHash: digest.Sum([]byte("only")), Timestamp: time.Now().UTC()}
	got, err := Decode(m.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.PreviousRootHash != nil {
		t.Fatalf("PreviousRootHash = %v, want nil", got.PreviousRootHash)
	}
}

func TestNextChainsPreviousRoot(t *testing.T) {
	var m Manifest
	first := m.Next(digest.Sum([]byte("first")), time.Now().UTC())
	if first.PreviousRootHash != nil {
		t.Fatalf("first commit should have no previous root, got %v", first.PreviousRootHash)
	}
	second := first.Next(digest.Sum([]byte("second")), time.Now().UTC())
	if second.PreviousRootHash == nil || *second.PreviousRootHash != first.RootHash {
		t.Fatalf("second.PreviousRootHash = %v, want %s", second.PreviousRootHash, first.RootHash)
	}
}

func TestReflogAppendAndRead(t *testing.T) {
	s := store.NewMem(1 << 20)
	const path = "reflog"
	if got, err := ReadReflog(s, path); err != nil || len(got) != 0 {
		t.Fatalf("ReadReflog on missing file = (%v, %v), want (empty, nil)", got, err)
	}
	d1 := digest.Sum([]byte("one"))
	d2 := digest.Sum([]byte("two"))
	if err := AppendReflog(s, path, d1); err != nil {
		t.Fatal(err)
	}
	if err := AppendReflog(s, path, d2); err != nil {
		t.Fatal(err)
	}
	got, err := ReadReflog(s, path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != d1 || got[1] != d2 {
		t.Fatalf("ReadReflog = %v, want [%s %s]", got, d1, d2)
	}
}
