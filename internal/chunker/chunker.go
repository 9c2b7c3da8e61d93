// Package chunker implements the fixed-size framed streaming chunker and
// the in-memory / memory-mapped chunk abstractions used by the content
// store.
package chunker

import (
	"io"

	"golang.org/x/xerrors"
)

// DefaultSize is the chunker's default target chunk size.
const DefaultSize = 4 << 20 // 4 MiB

// ReadChunked reads r into buf repeatedly; each time buf fills it invokes
// f with the filled slice. On EOF, any non-empty remainder is flushed
// through f once more. f must not retain the slice past its call.
//
// ReadChunked produces exactly ceil(total/len(buf)) calls to f, matching
// the chunker completeness property: concatenating the slices passed to
// f yields the original input.
func ReadChunked(r io.Reader, buf []byte, f func([]byte) error) error {
	if len(buf) == 0 {
		return xerrors.New("chunker: buffer must be non-empty")
	}
	for {
		n, err := io.ReadFull(r, buf)
		switch {
		case err == nil:
			if err := f(buf[:n]); err != nil {
				return err
			}
		case err == io.ErrUnexpectedEOF || err == io.EOF:
			if n > 0 {
				if err := f(buf[:n]); err != nil {
					return err
				}
			}
			return nil
		default:
			return xerrors.Errorf("chunker: reading input: %w", ErrDiskIO)
		}
	}
}

// ErrDiskIO is returned when ReadChunked encounters an I/O error other
// than a short read at EOF.
var ErrDiskIO = diskIOError{}

type diskIOError struct{}

func (diskIOError) Error() string { return "chunker: disk I/O error" }
