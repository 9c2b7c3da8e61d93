package workspace

import (
	"io"

	"golang.org/x/xerrors"

	"github.com/orcaman/writerseeker"

	"github.com/sedimentfs/sedimentfs/internal/chunker"
	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/inode"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

// ErrChunkLoad is wrapped when a lower chunk referenced by the piece
// table cannot be fetched from the store.
var ErrChunkLoad = xerrors.New("workspace: loading lower chunk")

// FileWorkspace is the mutable, in-memory representation of one regular
// file's content: a patchwork of immutable lower chunks, an append-only
// upper buffer of newly written bytes, and synthesized zero holes,
// addressed by an ordered piece table.
type FileWorkspace struct {
	store store.Store

	lowerDigests []digest.Digest
	lowerChunks  []chunker.Chunk // lazily populated, same length as lowerDigests

	upper  []byte
	pieces []Piece
	size   uint64
	dirty  bool
}

// NewFileWorkspace builds a FileWorkspace from an inode's chunk list.
func NewFileWorkspace(s store.Store, chunks []inode.ChunkDescriptor) *FileWorkspace {
	w := &FileWorkspace{store: s}
	w.lowerDigests = make([]digest.Digest, len(chunks))
	w.lowerChunks = make([]chunker.Chunk, len(chunks))
	for i, c := range chunks {
		w.lowerDigests[i] = c.Digest
		w.pieces = append(w.pieces, Piece{
			Target:     TargetLower,
			LowerIndex: i,
			Offset:     0,
			Size:       c.Size,
		})
		w.size += c.Size
	}
	return w
}

// Size returns the file's current logical size.
func (w *FileWorkspace) Size() uint64 { return w.size }

// Dirty reports whether the file has been written or truncated since it
// was loaded or last flushed.
func (w *FileWorkspace) Dirty() bool { return w.dirty }

// ClearDirty resets the dirty flag after a successful flush.
func (w *FileWorkspace) ClearDirty() { w.dirty = false }

func (w *FileWorkspace) lowerChunk(i int) (chunker.Chunk, error) {
	if w.lowerChunks[i] != nil {
		return w.lowerChunks[i], nil
	}
	c, err := w.store.Chunk(w.lowerDigests[i])
	if err != nil {
		return nil, xerrors.Errorf("workspace: chunk %s: %w", w.lowerDigests[i], ErrChunkLoad)
	}
	w.lowerChunks[i] = c
	return c, nil
}

// pieceBytes returns the sub-range [begin, end) of piece p's own address
// space (i.e. relative to p.Offset), dispatching on its target.
func (w *FileWorkspace) pieceBytes(p Piece, begin, end uint64) ([]byte, error) {
	switch p.Target {
	case TargetLower:
		c, err := w.lowerChunk(p.LowerIndex)
		if err != nil {
			return nil, err
		}
		s := c.Slice()
		return s[p.Offset+begin : p.Offset+end], nil
	case TargetUpper:
		return w.upper[p.Offset+begin : p.Offset+end], nil
	case TargetZero:
		return make([]byte, end-begin), nil
	default:
		return nil, xerrors.Errorf("workspace: unknown piece target %d", p.Target)
	}
}

// Read returns up to n bytes starting at offset. Reading past the end of
// file yields fewer bytes than requested (never an error); reading at or
// past the current size yields no bytes.
func (w *FileWorkspace) Read(offset uint64, n int) ([]byte, error) {
	if n <= 0 || w.size == 0 || offset >= w.size {
		return nil, nil
	}
	remaining := w.size - offset
	want := uint64(n)
	if want > remaining {
		want = remaining
	}

	idx, offInPiece := locate(w.pieces, offset)
	out := make([]byte, 0, want)
	for i := idx; i < len(w.pieces) && want > 0; i++ {
		p := w.pieces[i]
		avail := p.Size - offInPiece
		take := avail
		if want < take {
			take = want
		}
		b, err := w.pieceBytes(p, offInPiece, offInPiece+take)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		want -= take
		offInPiece = 0
	}
	return out, nil
}

// Write stores buf at offset, extending the file (with a zero-filled
// hole, if offset is beyond the current end) as needed. It returns the
// number of bytes written and the file's new size.
//
// Write never overwrites bytes already committed to the lower, immutable
// layer in place: it always slices the piece table around the affected
// range and appends the new bytes to the upper buffer.
func (w *FileWorkspace) Write(offset uint64, buf []byte) (uint32, uint64) {
	if len(buf) == 0 {
		return 0, w.size
	}
	w.dirty = true

	upperOffset := uint64(len(w.upper))
	w.upper = append(w.upper, buf...)
	newPiece := Piece{Target: TargetUpper, Offset: upperOffset, Size: uint64(len(buf))}

	switch {
	case len(w.pieces) == 0 || offset >= w.size:
		if offset > w.size {
			w.pieces = append(w.pieces, Piece{Target: TargetZero, Size: offset - w.size})
		}
		w.pieces = append(w.pieces, newPiece)
		w.size = offset + uint64(len(buf))
		return uint32(len(buf)), w.size

	default:
		firstIdx, offInFirst := locate(w.pieces, offset)
		newPieces := append([]Piece(nil), w.pieces[:firstIdx]...)
		if offInFirst > 0 {
			trunc := w.pieces[firstIdx]
			trunc.Size = offInFirst
			newPieces = append(newPieces, trunc)
		}
		newPieces = append(newPieces, newPiece)

		end := offset + uint64(len(buf))
		if end >= w.size {
			w.pieces = newPieces
			w.size = end
			return uint32(len(buf)), w.size
		}

		lastIdx, offInLast := locate(w.pieces, end)
		saveIdx := len(newPieces)
		newPieces = append(newPieces, w.pieces[lastIdx:]...)
		newPieces[saveIdx].Offset += offInLast
		newPieces[saveIdx].Size -= offInLast

		w.pieces = newPieces
		return uint32(len(buf)), w.size
	}
}

// Truncate resizes the file to newSize, padding with a zero hole if
// growing, or slicing the piece table if shrinking.
func (w *FileWorkspace) Truncate(newSize uint64) {
	switch {
	case newSize == w.size:
		return
	case newSize == 0:
		w.pieces = nil
		w.upper = nil
		w.size = 0
	case newSize < w.size:
		idx, off := locate(w.pieces, newSize)
		w.pieces = w.pieces[:idx+1]
		w.pieces[idx].Size = off
		w.size = newSize
	default:
		w.pieces = append(w.pieces, Piece{Target: TargetZero, Size: newSize - w.size})
		w.size = newSize
	}
	w.dirty = true
}

// Unload drops any cached lower chunks, so the next read re-fetches them
// from the store. The piece table and upper buffer are untouched.
func (w *FileWorkspace) Unload() {
	for i := range w.lowerChunks {
		w.lowerChunks[i] = nil
	}
}

// Reconstruct returns an io.Reader over the workspace's full content, in
// piece-table order, for the commit path to stream through the chunker.
func (w *FileWorkspace) Reconstruct() (io.Reader, error) {
	var ws writerseeker.WriterSeeker
	for _, p := range w.pieces {
		b, err := w.pieceBytes(p, 0, p.Size)
		if err != nil {
			return nil, err
		}
		if _, err := ws.Write(b); err != nil {
			return nil, xerrors.Errorf("workspace: buffering reconstruction stream: %w", err)
		}
	}
	return ws.Reader(), nil
}

// PieceCount reports the current number of piece-table entries. Exposed
// for tests asserting on piece-table shape.
func (w *FileWorkspace) PieceCount() int { return len(w.pieces) }
