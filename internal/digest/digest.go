// Package digest implements the cryptographic content hash used as chunk
// identity and as the root-of-snapshot recorded in the manifest.
package digest

import (
	"encoding/hex"

	"golang.org/x/xerrors"
	"lukechampine.com/blake3"
)

// Size is the width, in bytes, of a Digest.
const Size = 32

// Digest is a fixed-width content hash. The zero Digest is not a valid
// hash of anything and is only used as a sentinel.
type Digest [Size]byte

// Sum returns the Digest of b.
func Sum(b []byte) Digest {
	var d Digest
	sum := blake3.Sum256(b)
	copy(d[:], sum[:])
	return d
}

// NewWriter returns a hash.Hash-compatible writer whose Sum can be turned
// into a Digest via SumWriter. For callers that already hold the full
// byte slice, Sum is simpler; NewWriter exists for a caller that wants
// to hash while framing a chunk off an io.Reader, without materializing
// the chunk twice.
func NewWriter() *blake3.Hasher {
	return blake3.New(Size, nil)
}

// SumWriter extracts a Digest from a writer created via NewWriter.
func SumWriter(h *blake3.Hasher) Digest {
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText implements encoding.TextMarshaler so a Digest round-trips
// through the manifest's human-readable text document.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler so a Digest encodes
// as a compact CBOR byte string in catalog records.
func (d Digest) MarshalBinary() ([]byte, error) {
	return d[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (d *Digest) UnmarshalBinary(b []byte) error {
	if len(b) != Size {
		return xerrors.Errorf("digest: %d bytes, want %d: %w", len(b), Size, ErrWrongLength)
	}
	copy(d[:], b)
	return nil
}

// FromHex parses a lowercase (or uppercase) hex string into a Digest.
func FromHex(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, xerrors.Errorf("digest: invalid hex %q: %w", s, ErrInvalidHex)
	}
	if len(b) != Size {
		return d, xerrors.Errorf("digest: %q decodes to %d bytes, want %d: %w", s, len(b), Size, ErrWrongLength)
	}
	copy(d[:], b)
	return d, nil
}

// Shard returns the two path components used to fan out chunk files on
// disk: <hex[0:2]>/<hex[2:4]>.
func (d Digest) Shard() (string, string) {
	h := d.String()
	return h[0:2], h[2:4]
}
