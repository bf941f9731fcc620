package navmesh

import "fmt"

// PolyRef addresses one polygon: | generation:16 | tile slot:24 | poly:24 |.
// The generation of a slot bumps every time its tile is removed, so refs that
// outlive their tile stop resolving instead of pointing at a newer tile.
type PolyRef uint64

const (
	polyBits = 24
	tileBits = 24
	genBits  = 16

	polyMask = 1<<polyBits - 1
	tileMask = 1<<tileBits - 1
	genMask  = 1<<genBits - 1
)

func encodeRef(gen uint16, slot, poly int) PolyRef {
	return PolyRef(uint64(gen)<<(polyBits+tileBits) | uint64(slot&tileMask)<<polyBits | uint64(poly&polyMask))
}

func (r PolyRef) decode() (gen uint16, slot, poly int) {
	gen = uint16(uint64(r) >> (polyBits + tileBits) & genMask)
	slot = int(uint64(r) >> polyBits & tileMask)
	poly = int(uint64(r) & polyMask)
	return
}

func (r PolyRef) String() string {
	if r == 0 {
		return "poly(nil)"
	}
	gen, slot, poly := r.decode()
	return fmt.Sprintf("poly(%d:%d@%d)", slot, poly, gen)
}
