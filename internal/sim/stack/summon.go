package stack

import "math"

// blockCenter snaps a position to the center of its block. Summoning
// at block centers avoids most failures on slabs and stairs.
func blockCenter(x, y, z float64) (float64, float64, float64) {
	return math.Floor(x) + 0.5, math.Floor(y) + 0.5, math.Floor(z) + 0.5
}

func blockIndex(v float64) int { return int(math.Floor(v)) }

// Vertical offsets tried in order, then small horizontal nudges at
// the highest-success vertical offset.
var summonYOffsets = []float64{0.51, 0.35, 0.20, 0.01, -0.20, -0.45, 0.70, -0.70, 1.00, -1.00}

var summonXZOffsets = [][2]float64{{0.35, 0}, {-0.35, 0}, {0, 0.35}, {0, -0.35}}

// safeSummon walks the offset ladder until the host accepts a spawn.
func (e *Engine) safeSummon(etype, dim string, x, y, z float64) bool {
	for _, dy := range summonYOffsets {
		if e.host.Summon(etype, dim, x, y+dy, z) {
			return true
		}
	}
	for _, d := range summonXZOffsets {
		if e.host.Summon(etype, dim, x+d[0], y+0.51, z+d[1]) {
			return true
		}
	}
	return false
}
