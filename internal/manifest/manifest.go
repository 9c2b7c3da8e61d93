// Package manifest implements the small human-readable snapshot record
// published atomically after every commit, and the append-only reflog of
// prior roots.
package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/sedimentfs/sedimentfs/internal/digest"
)

// timeLayout is RFC 822 (two-digit year, with seconds) with a literal GMT
// zone name, used for the manifest's timestamp field.
const timeLayout = "02 Jan 06 15:04:05 GMT"

// Manifest is the root-of-snapshot record: the digest of the most
// recently committed catalog file, the digest of the one before it (if
// any), and the commit's wall-clock time.
type Manifest struct {
	RootHash         digest.Digest
	PreviousRootHash *digest.Digest
	Timestamp        time.Time
}

// Encode renders m as the manifest's key: value text document.
func (m Manifest) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "root_hash: %s\n", m.RootHash)
	if m.PreviousRootHash != nil {
		fmt.Fprintf(&buf, "previous_root_hash: %s\n", *m.PreviousRootHash)
	}
	fmt.Fprintf(&buf, "timestamp: %s\n", m.Timestamp.UTC().Format(timeLayout))
	return buf.Bytes()
}

// Decode parses the key: value text document produced by Encode.
func Decode(b []byte) (Manifest, error) {
	var m Manifest
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return Manifest{}, xerrors.Errorf("manifest: malformed line %q", line)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "root_hash":
			d, err := digest.FromHex(val)
			if err != nil {
				return Manifest{}, xerrors.Errorf("manifest: root_hash: %w", err)
			}
			m.RootHash = d
		case "previous_root_hash":
			d, err := digest.FromHex(val)
			if err != nil {
				return Manifest{}, xerrors.Errorf("manifest: previous_root_hash: %w", err)
			}
			m.PreviousRootHash = &d
		case "timestamp":
			t, err := time.Parse(timeLayout, val)
			if err != nil {
				return Manifest{}, xerrors.Errorf("manifest: timestamp: %w", err)
			}
			m.Timestamp = t
		default:
			return Manifest{}, xerrors.Errorf("manifest: unknown key %q", key)
		}
	}
	if err := sc.Err(); err != nil {
		return Manifest{}, xerrors.Errorf("manifest: scanning: %w", err)
	}
	return m, nil
}

// Next builds the manifest that should be published after a new commit
// produces rootHash, carrying m's own root forward as the previous root.
func (m Manifest) Next(rootHash digest.Digest, now time.Time) Manifest {
	var prev *digest.Digest
	zero := digest.Digest{}
	if m.RootHash != zero {
		h := m.RootHash
		prev = &h
	}
	return Manifest{RootHash: rootHash, PreviousRootHash: prev, Timestamp: now}
}
