package stack

import (
	"math"

	"mobstack.dev/internal/sim/world"
)

// The spawn command returns no handle, so a freshly created mob has
// to be inferred by elimination and proximity: snapshot who occupied
// the target block before the spawn, then look for a same-type mob
// that is not in the snapshot.

func (e *Engine) snapshotSameBlockIDs(etype, dim string, bx, by, bz float64) map[world.ID]bool {
	blockX, blockY, blockZ := blockIndex(bx), blockIndex(by), blockIndex(bz)
	ids := make(map[world.ID]bool)
	for _, m := range e.host.Mobs() {
		if !m.Valid() || m.Dead() {
			continue
		}
		if normalizeType(m.Type()) != etype || m.Dimension() != dim {
			continue
		}
		x, y, z := m.Position()
		if blockIndex(x) == blockX && blockIndex(y) == blockY && blockIndex(z) == blockZ {
			ids[m.ID()] = true
		}
	}
	return ids
}

// findNewbornByDiff is the strict first pass: exact block, not in the
// snapshot, closest in flat distance to the target.
func (e *Engine) findNewbornByDiff(etype, dim string, bx, by, bz float64, pre map[world.ID]bool) world.Mob {
	blockX, blockY, blockZ := blockIndex(bx), blockIndex(by), blockIndex(bz)
	var best world.Mob
	bestD2 := math.MaxFloat64
	for _, m := range e.host.Mobs() {
		if !m.Valid() || m.Dead() {
			continue
		}
		if normalizeType(m.Type()) != etype || m.Dimension() != dim {
			continue
		}
		if pre[m.ID()] {
			continue
		}
		x, y, z := m.Position()
		if blockIndex(x) != blockX || blockIndex(y) != blockY || blockIndex(z) != blockZ {
			continue
		}
		dx, dz := x-bx, z-bz
		d2 := dx*dx + dz*dz
		if d2 < bestD2 {
			bestD2, best = d2, m
		}
	}
	return best
}

// findNewbornNear is the forgiving second pass: same block preferred,
// otherwise within one block index per axis and ~0.9 blocks flat.
// Slabs, stairs and a short fall can displace a spawn that much.
func (e *Engine) findNewbornNear(etype, dim string, bx, by, bz float64, pre map[world.ID]bool) world.Mob {
	if m := e.findNewbornByDiff(etype, dim, bx, by, bz, pre); m != nil {
		return m
	}
	blockX, blockY, blockZ := blockIndex(bx), blockIndex(by), blockIndex(bz)
	var best world.Mob
	bestD2 := math.MaxFloat64
	for _, m := range e.host.Mobs() {
		if !m.Valid() || m.Dead() {
			continue
		}
		if normalizeType(m.Type()) != etype || m.Dimension() != dim {
			continue
		}
		if pre[m.ID()] {
			continue
		}
		x, y, z := m.Position()
		if abs(blockIndex(y)-blockY) > 1 {
			continue
		}
		if abs(blockIndex(x)-blockX) > 1 || abs(blockIndex(z)-blockZ) > 1 {
			continue
		}
		dx, dz := x-bx, z-bz
		d2 := dx*dx + dz*dz
		if d2 <= 0.9*0.9 && d2 < bestD2 {
			bestD2, best = d2, m
		}
	}
	return best
}

// forceAdultReplace kills a baby of an allowed type and respawns an
// adult in its block. No count changes; ageing must not create
// uncountable offspring.
func (e *Engine) forceAdultReplace(m world.Mob) {
	if !e.isAllowed(m.Type()) || !m.Baby() {
		return
	}
	etype := normalizeType(m.Type())
	dim := m.Dimension()
	x, y, z := m.Position()
	bx, by, bz := blockCenter(x, y, z)
	delete(e.counts, m.ID())
	e.host.Remove(m.ID())
	e.safeSummon(etype, dim, bx, by, bz)
}

// adultize returns cand if already adult; otherwise replaces it and
// resolves the replacement under a fresh same-block snapshot. Nil if
// the replacement cannot be found.
func (e *Engine) adultize(etype, dim string, bx, by, bz float64, cand world.Mob) world.Mob {
	if cand == nil {
		return nil
	}
	if !cand.Baby() {
		return cand
	}
	pre := e.snapshotSameBlockIDs(etype, dim, bx, by, bz)
	e.forceAdultReplace(cand)
	return e.findNewbornByDiff(etype, dim, bx, by, bz, pre)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
