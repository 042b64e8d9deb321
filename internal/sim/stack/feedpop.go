package stack

import (
	"mobstack.dev/internal/sim/world"
)

// Type-appropriate breeding items. Feeding a leader one of these pops
// a singleton off the stack.
var feedItems = map[string]map[string]bool{
	"minecraft:cow":   {"minecraft:wheat": true},
	"minecraft:sheep": {"minecraft:wheat": true},
	"minecraft:pig": {
		"minecraft:wheat":    true,
		"minecraft:carrot":   true,
		"minecraft:potato":   true,
		"minecraft:beetroot": true,
	},
	"minecraft:chicken": {
		"minecraft:wheat_seeds":    true,
		"minecraft:beetroot_seeds": true,
		"minecraft:pumpkin_seeds":  true,
		"minecraft:melon_seeds":    true,
	},
}

// HandleInteract processes a player interaction with a mob. itemType
// is the held item's type id, empty when unknown. A qualifying feed
// decrements the leader by one and spawns the popped singleton
// best-effort (no retry chain; a failed spawn loses only the split
// attempt, never the leader's remaining count).
func (e *Engine) HandleInteract(m world.Mob, itemType string) {
	if e.closed || m == nil {
		return
	}
	s := e.cfg.Current()
	if !s.FeedPopEnabled {
		return
	}
	if !isLeader(m) || m.Baby() {
		return
	}
	if m.Tamed() && s.IgnoreTamed {
		return
	}
	if !e.isAllowed(m.Type()) {
		return
	}

	etype := normalizeType(m.Type())
	itemOK := false
	if itemType != "" {
		itemOK = feedItems[etype][normalizeType(itemType)]
	}
	if s.FeedPopRequireItem && !itemOK {
		return
	}

	id := m.ID()
	now := e.nowTicks()

	if now < e.breedCooldownUntil[id] {
		return
	}
	if last, ok := e.lastFeedPop[id]; ok && now-last < uint64(s.FeedPopCooldownTicks) {
		return
	}
	e.lastFeedPop[id] = now

	count := e.getCount(m)
	if count < 2 {
		return
	}

	e.setCount(id, count-1)
	e.updateNameTag(m)

	dim := m.Dimension()
	x, y, z := m.Position()
	bx, by, bz := blockCenter(x, y, z)
	e.safeSummon(etype, dim, bx, by, bz)

	e.breedCooldownUntil[id] = now + uint64(s.FeedPopBreedCooldownTicks)

	e.record(Event{Kind: EventFeedSplit, Etype: etype, Dim: dim, X: bx, Y: by, Z: bz, LeaderID: id, Count: count - 1})
}

// HandleSpawn processes a mob appearing in the world (natural spawn
// or chunk load). Babies of allowed types are adult-replaced on the
// spot; a returning tagged leader gets its count re-parsed from its
// name; an untracked mob carrying a count is re-promoted.
func (e *Engine) HandleSpawn(m world.Mob) {
	if e.closed || m == nil {
		return
	}
	s := e.cfg.Current()

	if m.Baby() && e.isAllowed(m.Type()) {
		e.forceAdultReplace(m)
		return
	}

	id := m.ID()
	if _, ok := e.counts[id]; !ok {
		e.counts[id] = 1
	}

	if isLeader(m) {
		if e.counts[id] == 1 {
			if n, ok := parseCount(m.NameTag()); ok && n >= 1 {
				e.counts[id] = minInt(n, s.MaxStackSize)
			}
		}
		e.updateNameTag(m)
	} else if cnt := e.getCountID(id); cnt >= 2 && e.eligibleBasic(m, s, true, false) {
		e.promoteLeader(m, minInt(cnt, s.MaxStackSize))
	}

	e.defuseTamedLeaders(s)
}
