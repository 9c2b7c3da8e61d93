package digest

import "errors"

// ErrInvalidHex is returned when a textual digest cannot be hex-decoded.
var ErrInvalidHex = errors.New("digest: invalid hex encoding")

// ErrWrongLength is returned when a textual digest decodes to a byte
// sequence that is not exactly Size bytes long.
var ErrWrongLength = errors.New("digest: wrong length")
