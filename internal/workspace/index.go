package workspace

import "math"

// IndexGenerator hands out monotonically increasing inode indices,
// seeded from the catalog's recorded max index at startup.
type IndexGenerator struct {
	next uint64
}

// NewIndexGenerator seeds a generator so its first Next() call returns
// max+1.
func NewIndexGenerator(max uint64) *IndexGenerator {
	return &IndexGenerator{next: max}
}

// Next returns the next unused index. Exhaustion at the top of the
// uint64 range is fatal: the caller should stop the engine.
func (g *IndexGenerator) Next() (uint64, error) {
	if g.next == math.MaxUint64 {
		return 0, ErrIndexExhausted
	}
	g.next++
	return g.next, nil
}
