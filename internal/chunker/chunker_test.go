package chunker

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestReadChunkedCompleteness(t *testing.T) {
	cases := []struct {
		fileSize, chunkSize int
	}{
		{0, 10},
		{1, 10000},
		{16, 10000}, // §8 scenario 1: "alabalaportocala"
		{10000, 10000},
		{10001, 10000},
		{25000, 10000},
	}
	for _, tc := range cases {
		src := make([]byte, tc.fileSize)
		rand.New(rand.NewSource(1)).Read(src)

		var got []byte
		var chunkCount int
		buf := make([]byte, tc.chunkSize)
		err := ReadChunked(bytes.NewReader(src), buf, func(b []byte) error {
			chunkCount++
			cp := make([]byte, len(b))
			copy(cp, b)
			got = append(got, cp...)
			return nil
		})
		if err != nil {
			t.Fatalf("fileSize=%d chunkSize=%d: %v", tc.fileSize, tc.chunkSize, err)
		}
		if !bytes.Equal(got, src) {
			t.Fatalf("fileSize=%d chunkSize=%d: concatenation mismatch", tc.fileSize, tc.chunkSize)
		}
		wantChunks := (tc.fileSize + tc.chunkSize - 1) / tc.chunkSize
		if tc.fileSize == 0 {
			wantChunks = 0
		}
		if chunkCount != wantChunks {
			t.Fatalf("fileSize=%d chunkSize=%d: got %d chunks, want %d", tc.fileSize, tc.chunkSize, chunkCount, wantChunks)
		}
	}
}

func TestReadChunkedSingleChunkFile(t *testing.T) {
	src := []byte("alabalaportocala")
	var calls int
	buf := make([]byte, 10000)
	err := ReadChunked(bytes.NewReader(src), buf, func(b []byte) error {
		calls++
		if !bytes.Equal(b, src) {
			t.Fatalf("chunk content = %q, want %q", b, src)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("got %d calls, want 1", calls)
	}
}

func TestMemChunk(t *testing.T) {
	c := NewMemChunk([]byte("hello"))
	if c.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", c.Size())
	}
	if string(c.Slice()) != "hello" {
		t.Fatalf("Slice() = %q, want %q", c.Slice(), "hello")
	}
}
