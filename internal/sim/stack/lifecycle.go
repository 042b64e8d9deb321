package stack

import (
	"mobstack.dev/internal/sim/world"
)

// HurtInfo carries whatever pre-death information the host exposes
// about a hit. Unknown fields stay un-Known and the hit is treated as
// non-lethal.
type HurtInfo struct {
	Fatal      bool
	FatalKnown bool

	NewHealth      float64
	NewHealthKnown bool
}

func (i HurtInfo) lethal() bool {
	if i.FatalKnown {
		return i.Fatal
	}
	if i.NewHealthKnown {
		return i.NewHealth <= 0
	}
	return false
}

// HandleHurt processes a damage notification. A lethal hit on a
// leader decrements immediately so the count survives even when the
// death notification is suppressed (explosions, plugins).
func (e *Engine) HandleHurt(m world.Mob, info HurtInfo) {
	if e.closed || m == nil || !isLeader(m) {
		return
	}
	id := m.ID()
	if e.alreadyHandledThisTick(id) {
		return
	}
	if !info.lethal() {
		return
	}
	if !e.cfg.Current().HandleLethalOnHurt {
		return
	}
	e.processLeaderDeath(m)
	e.noteHandledThisTick(id)
}

// HandleDeath processes a death notification. If a lethal hit already
// handled this kill on the same tick, only bookkeeping remains.
func (e *Engine) HandleDeath(m world.Mob) {
	if e.closed || m == nil {
		return
	}
	id := m.ID()
	delete(e.breedCooldownUntil, id)
	delete(e.lastFeedPop, id)

	if e.alreadyHandledThisTick(id) {
		if !isLeader(m) {
			delete(e.counts, id)
		}
		return
	}
	if !isLeader(m) {
		delete(e.counts, id)
		return
	}
	e.processLeaderDeath(m)
	e.noteHandledThisTick(id)
}

// processLeaderDeath peels one unit off a dying leader and attaches
// the remainder to a freshly spawned replacement. The remainder must
// never vanish: every failure path ends in the pending queue.
func (e *Engine) processLeaderDeath(m world.Mob) {
	count := e.getCount(m)
	id := m.ID()

	if count <= 1 {
		delete(e.counts, id)
		return
	}

	s := e.cfg.Current()
	if !e.isAllowed(m.Type()) {
		delete(e.counts, id)
		return
	}

	etype := normalizeType(m.Type())
	dim := m.Dimension()
	x, y, z := m.Position()
	remaining := count - 1
	cap_ := s.MaxStackSize

	bx, by, bz := blockCenter(x, y, z)
	pre := e.snapshotSameBlockIDs(etype, dim, bx, by, bz)

	if !e.safeSummon(etype, dim, bx, by, bz) {
		e.enqueuePending(etype, dim, bx, by, bz, remaining)
		delete(e.counts, id)
		if !e.quiet() {
			e.log.Printf("summon failed; queued %dx %s at %s %.2f,%.2f,%.2f", remaining, etype, dim, bx, by, bz)
		}
		return
	}

	e.record(Event{Kind: EventLeaderDeath, Etype: etype, Dim: dim, X: bx, Y: by, Z: bz, LeaderID: id, Count: remaining})

	if newborn := e.findNewbornNear(etype, dim, bx, by, bz, pre); newborn != nil {
		if adult := e.adultize(etype, dim, bx, by, bz, newborn); adult != nil {
			e.promoteLeader(adult, minInt(remaining, cap_))
			delete(e.counts, id)
			return
		}
	}

	// The world has not materialized the spawn yet. Retry at
	// increasing delays; only the last failure queues the remainder,
	// so the count attaches exactly once.
	e.scheduleAttach(id, etype, dim, bx, by, bz, pre, remaining, 0)
}

// attachDelays are the gaps between successive resolution attempts,
// not absolute offsets: each entry is scheduled relative to the
// previous attempt, so cumulatively they land at ~1, 3 and 10 ticks
// after the death.
var attachDelays = []uint64{1, 2, 7}

func (e *Engine) scheduleAttach(oldID world.ID, etype, dim string, bx, by, bz float64, pre map[world.ID]bool, remaining int, attempt int) {
	e.after(attachDelays[attempt], func() {
		if e.attachNewborn(oldID, etype, dim, bx, by, bz, pre, remaining) {
			return
		}
		if attempt+1 < len(attachDelays) {
			e.scheduleAttach(oldID, etype, dim, bx, by, bz, pre, remaining, attempt+1)
			return
		}
		// Last resort: park the remainder for the periodic drain.
		e.enqueuePending(etype, dim, bx, by, bz, remaining)
		delete(e.counts, oldID)
	})
}

// attachNewborn is one complete, non-blocking resolution attempt:
// exact diff, then the loose near-block pass, then a radius fallback
// among already-eligible under-capacity mobs of the same type.
func (e *Engine) attachNewborn(oldID world.ID, etype, dim string, bx, by, bz float64, pre map[world.ID]bool, remaining int) bool {
	s := e.cfg.Current()
	cap_ := s.MaxStackSize

	if newborn := e.findNewbornNear(etype, dim, bx, by, bz, pre); newborn != nil {
		if adult := e.adultize(etype, dim, bx, by, bz, newborn); adult != nil {
			e.promoteLeader(adult, minInt(remaining, cap_))
			delete(e.counts, oldID)
			return true
		}
	}

	r2 := s.Radius * s.Radius
	var best world.Mob
	bestD2 := maxFloat
	for _, m := range e.host.Mobs() {
		if normalizeType(m.Type()) != etype || m.Dimension() != dim {
			continue
		}
		if !e.eligibleBasic(m, s, true, false) {
			continue
		}
		x, y, z := m.Position()
		if absF(y-by) > yTolerance {
			continue
		}
		dx, dz := x-bx, z-bz
		d2 := dx*dx + dz*dz
		if d2 <= r2 && d2 < bestD2 {
			bestD2, best = d2, m
		}
	}
	if best != nil {
		if adult := e.adultize(etype, dim, bx, by, bz, best); adult != nil {
			e.promoteLeader(adult, minInt(remaining, cap_))
			delete(e.counts, oldID)
			return true
		}
	}
	return false
}

func (e *Engine) enqueuePending(etype, dim string, bx, by, bz float64, remaining int) {
	key := pendingKey{Dim: dim, X: blockIndex(bx), Y: blockIndex(by), Z: blockIndex(bz), Etype: etype}
	e.pending[key] += remaining
	e.record(Event{Kind: EventPendingEnqueue, Etype: etype, Dim: dim, X: bx, Y: by, Z: bz, Count: remaining})
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
