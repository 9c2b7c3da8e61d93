package manifest

import (
	"strings"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/digest"
	"github.com/sedimentfs/sedimentfs/internal/store"
)

// AppendReflog appends d's hex representation, newline-terminated, to the
// reflog special file.
func AppendReflog(s store.Store, path string, d digest.Digest) error {
	line := []byte(d.String() + "\n")
	if err := s.WriteSpecialFile(path, line, true); err != nil {
		return xerrors.Errorf("manifest: appending reflog: %w", err)
	}
	return nil
}

// ReadReflog returns the reflog's digests in append order. A missing
// reflog (no commit has ever run) yields an empty slice, not an error.
func ReadReflog(s store.Store, path string) ([]digest.Digest, error) {
	b, err := s.ReadSpecialFile(path)
	if err != nil {
		if xerrors.Is(err, store.ErrSpecialFileGet) {
			return nil, nil
		}
		return nil, xerrors.Errorf("manifest: reading reflog: %w", err)
	}
	var out []digest.Digest
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		d, err := digest.FromHex(line)
		if err != nil {
			return nil, xerrors.Errorf("manifest: parsing reflog line %q: %w", line, err)
		}
		out = append(out, d)
	}
	return out, nil
}
