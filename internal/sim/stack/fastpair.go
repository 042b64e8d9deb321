package stack

import (
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// Global comparison budget for the pair-merge fast path. Keeps the
// worst case roughly linear regardless of population size.
const maxFastPairChecks = 3000

// pairMergeFastPath merges pairs of under-capacity same-type leaders
// within radius before regular grouping, using the same cell grid.
func (e *Engine) pairMergeFastPath(candidates []world.Mob, s tuning.Settings, cell, r2 float64, cap_ int) bool {
	changed := false
	checks := 0

	var pool []world.Mob
	for _, m := range candidates {
		if m.Valid() && !m.Dead() && isLeader(m) && e.eligibleBasic(m, s, true, true) {
			pool = append(pool, m)
		}
	}
	if len(pool) == 0 {
		return false
	}

	buckets := make(map[cellKey][]world.Mob)
	for _, m := range pool {
		k := cellOfMob(m, cell)
		buckets[k] = append(buckets[k], m)
	}

	used := make(map[world.ID]bool)

	for _, a := range pool {
		if used[a.ID()] {
			continue
		}
		ca := e.getCount(a)
		if ca >= cap_ {
			continue
		}

		ax, _, az := a.Position()
		var best world.Mob
		bestD2 := maxFloat

		for _, nk := range neighborCells(cellOfMob(a, cell)) {
			for _, b := range buckets[nk] {
				if checks >= maxFastPairChecks {
					break
				}
				checks++

				if used[b.ID()] || b.ID() == a.ID() {
					continue
				}
				if !sameType(a, b) {
					continue
				}
				cb := e.getCount(b)
				if cb >= cap_ || ca+cb > cap_ {
					continue
				}
				if !withinRadiusFlat(a, b, r2) {
					continue
				}
				bx, _, bz := b.Position()
				dx, dz := ax-bx, az-bz
				d2 := dx*dx + dz*dz
				if d2 < bestD2 {
					bestD2, best = d2, b
				}
			}
			if checks >= maxFastPairChecks {
				break
			}
		}

		if best == nil {
			if checks >= maxFastPairChecks {
				break
			}
			continue
		}

		leader := e.chooseCentroidLeader([]world.Mob{a, best}, s)
		if leader == nil {
			leader = a
		}
		source := best
		if leader.ID() != a.ID() {
			source = a
		}
		total := ca + e.getCount(best)

		if !e.host.Remove(source.ID()) {
			continue
		}
		delete(e.counts, source.ID())
		e.promoteLeader(leader, total)
		used[leader.ID()] = true
		used[source.ID()] = true
		changed = true

		if checks >= maxFastPairChecks {
			break
		}
	}
	return changed
}
