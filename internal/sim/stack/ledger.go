package stack

import (
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// Any mob without a ledger entry stands for itself.
func (e *Engine) getCount(m world.Mob) int {
	return e.getCountID(m.ID())
}

func (e *Engine) getCountID(id world.ID) int {
	if c, ok := e.counts[id]; ok && c >= 1 {
		return c
	}
	return 1
}

func (e *Engine) setCount(id world.ID, v int) {
	if v < 1 {
		v = 1
	}
	e.counts[id] = v
}

func (e *Engine) atCap(m world.Mob, s tuning.Settings) bool {
	return e.getCount(m) >= s.MaxStackSize
}

func (e *Engine) alreadyHandledThisTick(id world.ID) bool {
	t, ok := e.deathHandledAt[id]
	return ok && t == e.nowTicks()
}

func (e *Engine) noteHandledThisTick(id world.ID) {
	e.deathHandledAt[id] = e.nowTicks()
}

// prune drops ledger, cooldown and handled-marker entries whose mob
// no longer exists. Pending entries are kept: they are location-keyed
// and by design never expire.
func (e *Engine) prune() {
	live := make(map[world.ID]bool)
	for _, m := range e.host.Mobs() {
		if m.Valid() && !m.Dead() {
			live[m.ID()] = true
		}
	}
	for id := range e.breedCooldownUntil {
		if !live[id] {
			delete(e.breedCooldownUntil, id)
		}
	}
	for id := range e.lastFeedPop {
		if !live[id] {
			delete(e.lastFeedPop, id)
		}
	}
	for id := range e.deathHandledAt {
		if !live[id] {
			delete(e.deathHandledAt, id)
		}
	}
	for id := range e.counts {
		if !live[id] {
			delete(e.counts, id)
		}
	}
}
