package store

import (
	"bytes"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	disk, err := NewDisk(dir, 16)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]Store{
		"mem":  NewMem(16),
		"disk": disk,
	}
}

func TestPutChunkIdempotent(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := []byte("ala bala portocala")
			d1, err := s.PutChunk(b)
			if err != nil {
				t.Fatal(err)
			}
			d2, err := s.PutChunk(b)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(d1, d2); diff != "" {
				t.Fatalf("descriptors differ after repeat put (-first +second):\n%s", diff)
			}
			got, err := s.Chunk(d1.Digest)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got.Slice(), b) {
				t.Fatalf("Chunk() = %q, want %q", got.Slice(), b)
			}
		})
	}
}

func TestChunkMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var zero [32]byte
			_ = zero
			d, _ := s.PutChunk([]byte("x"))
			// flip a byte to look up a digest that was never stored.
			missing := d.Digest
			missing[0] ^= 0xFF
			if _, err := s.Chunk(missing); err == nil {
				t.Fatal("expected error looking up missing chunk")
			}
		})
	}
}

func TestPutFileChunked(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			data := bytes.Repeat([]byte("0123456789abcdef"), 10) // 160 bytes, chunkSize=16
			descs, err := s.PutFileChunked(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			if len(descs) != 10 {
				t.Fatalf("got %d chunks, want 10", len(descs))
			}
			var got []byte
			for _, d := range descs {
				c, err := s.Chunk(d.Digest)
				if err != nil {
					t.Fatal(err)
				}
				got = append(got, c.Slice()...)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("reconstructed content mismatch")
			}
		})
	}
}

func TestSpecialFiles(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.WriteSpecialFile("manifest", []byte("root_hash: abc\n"), false); err != nil {
				t.Fatal(err)
			}
			got, err := s.ReadSpecialFile("manifest")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "root_hash: abc\n" {
				t.Fatalf("ReadSpecialFile = %q", got)
			}

			if err := s.WriteSpecialFile("reflog", []byte("line1\n"), true); err != nil {
				t.Fatal(err)
			}
			if err := s.WriteSpecialFile("reflog", []byte("line2\n"), true); err != nil {
				t.Fatal(err)
			}
			got, err = s.ReadSpecialFile("reflog")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "line1\nline2\n" {
				t.Fatalf("reflog = %q", got)
			}

			if _, err := s.ReadSpecialFile("does-not-exist"); err == nil {
				t.Fatal("expected error for missing special file")
			}
		})
	}
}

func TestDiskStoreCreatesRoot(t *testing.T) {
	dir := t.TempDir()
	sub := dir + "/nested/workdir"
	if _, err := NewDisk(sub, 16); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(sub + "/data"); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
}
