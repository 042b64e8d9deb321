package stack

import (
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// defuseTamedLeaders strips leader status from any leader that has
// become tamed, handing its count to the nearest untamed eligible
// under-capacity mob of the same type if one is within radius. A
// tamed mob is a personal pet and must never display an inherited
// count; with no recipient the count is discarded.
func (e *Engine) defuseTamedLeaders(s tuning.Settings) {
	if !s.IgnoreTamed {
		return
	}

	cap_ := s.MaxStackSize
	cell := s.Radius
	if cell <= 0 {
		cell = 4.0
	}

	var live []world.Mob
	anyTamedLeader := false
	for _, m := range e.host.Mobs() {
		if !m.Valid() || m.Dead() {
			continue
		}
		live = append(live, m)
		if isLeader(m) && m.Tamed() {
			anyTamedLeader = true
		}
	}
	if !anyTamedLeader {
		return
	}

	// Per-type grid of potential recipients.
	index := make(map[string]map[cellKey][]world.Mob)
	for _, m := range live {
		if m.Tamed() {
			continue
		}
		if !e.eligibleBasic(m, s, true, false) {
			continue
		}
		t := normalizeType(m.Type())
		if index[t] == nil {
			index[t] = make(map[cellKey][]world.Mob)
		}
		k := cellOfMob(m, cell)
		index[t][k] = append(index[t][k], m)
	}

	for _, a := range live {
		if !isLeader(a) || !a.Tamed() {
			continue
		}

		t := normalizeType(a.Type())
		ax, _, az := a.Position()

		var best world.Mob
		bestD2 := maxFloat
		for _, nk := range neighborCells(cellOfMob(a, cell)) {
			for _, m := range index[t][nk] {
				if !m.Valid() || m.Dead() {
					continue
				}
				mx, _, mz := m.Position()
				dx, dz := mx-ax, mz-az
				d2 := dx*dx + dz*dz
				if d2 < bestD2 {
					bestD2, best = d2, m
				}
			}
		}

		carried := e.getCount(a)
		if best != nil {
			e.promoteLeader(best, minInt(carried, cap_))
		}

		id := a.ID()
		delete(e.counts, id)
		delete(e.breedCooldownUntil, id)
		delete(e.lastFeedPop, id)
		e.host.RemoveTag(id, LeaderTag)
		e.host.SetNameTag(id, "", false, false)

		e.record(Event{Kind: EventDefuse, Etype: t, Dim: a.Dimension(), LeaderID: id, Count: carried})
	}
}
