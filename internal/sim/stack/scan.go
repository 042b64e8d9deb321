package stack

import (
	"math"
	"sort"

	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// Flat-distance grouping tolerates this much vertical separation:
// "same ground level", ignoring exact stacking.
const yTolerance = 1.25

const maxFloat = math.MaxFloat64

// How many pending entries one scan tries to drain.
const pendingDrainBatch = 8

// Cooldown tables are pruned every this many scans.
const pruneEveryScans = 10

type cellKey struct {
	Dim     string
	X, Y, Z int
}

func cellOf(dim string, x, y, z, cell float64) cellKey {
	if cell <= 0 {
		cell = 4.0
	}
	return cellKey{
		Dim: dim,
		X:   int(math.Floor(x / cell)),
		Y:   int(math.Floor(y / cell)),
		Z:   int(math.Floor(z / cell)),
	}
}

func cellOfMob(m world.Mob, cell float64) cellKey {
	x, y, z := m.Position()
	return cellOf(m.Dimension(), x, y, z, cell)
}

func neighborCells(k cellKey) []cellKey {
	out := make([]cellKey, 0, 27)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				out = append(out, cellKey{k.Dim, k.X + dx, k.Y + dy, k.Z + dz})
			}
		}
	}
	return out
}

func withinRadiusFlat(a, b world.Mob, r2 float64) bool {
	ax, ay, az := a.Position()
	bx, by, bz := b.Position()
	if absF(ay-by) > yTolerance {
		return false
	}
	dx, dz := ax-bx, az-bz
	return dx*dx+dz*dz <= r2
}

// scan is the periodic cycle: settings poll, pending drain, tamed
// defusal, grid bucketing, group formation, absorption.
func (e *Engine) scan() {
	if e.closed {
		return
	}

	if s, reloaded, err := e.cfg.Poll(); reloaded {
		if err != nil {
			e.log.Printf("config reload failed (%v); running on defaults", err)
		} else if !e.quiet() {
			e.log.Printf("config reloaded (radius=%.1f, min_group=%d, max_stack=%d; %d allowed types)",
				s.Radius, s.MinGroup, s.MaxStackSize, len(s.AllowedTypes))
		}
		e.rebuildAllowed(s)
		e.reindexFromNames()
		if uint64(s.ScanPeriodTicks) != e.scanPeriod {
			e.scheduleScan(uint64(s.ScanPeriodTicks))
		}
	}

	e.prunePhase++
	if e.prunePhase%pruneEveryScans == 0 {
		e.prune()
	}

	e.drainPending()

	s := e.cfg.Current()
	if !s.Enabled || len(e.allowed) == 0 {
		return
	}

	r := s.Radius
	r2 := r * r
	minGroup := s.MinGroup
	cap_ := s.MaxStackSize

	e.defuseTamedLeaders(s)

	var candidates []world.Mob
	for _, m := range e.host.Mobs() {
		if e.eligibleBasic(m, s, false, true) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return
	}
	// Host enumeration order is unspecified; sort so the same input
	// state always forms the same groups.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID() < candidates[j].ID() })

	if s.AllowLeaderPairMerge {
		e.pairMergeFastPath(candidates, s, math.Max(r, 0.001), r2, cap_)
	}

	cell := r
	if cell <= 0 {
		cell = 4.0
	}
	buckets := make(map[cellKey][]world.Mob)
	for _, m := range candidates {
		k := cellOfMob(m, cell)
		buckets[k] = append(buckets[k], m)
	}

	visited := make(map[world.ID]bool)

	for _, a := range candidates {
		if visited[a.ID()] {
			continue
		}

		group := []world.Mob{a}
		for _, nk := range neighborCells(cellOfMob(a, cell)) {
			for _, b := range buckets[nk] {
				if visited[b.ID()] || b.ID() == a.ID() {
					continue
				}
				if !sameType(a, b) {
					continue
				}
				if withinRadiusFlat(a, b, r2) && e.eligibleBasic(b, s, false, false) {
					group = append(group, b)
				}
			}
		}

		if len(group) < minGroup {
			for _, m := range group {
				visited[m.ID()] = true
			}
			continue
		}

		leader := e.chooseCentroidLeader(group, s)
		if leader == nil {
			for _, m := range group {
				visited[m.ID()] = true
			}
			continue
		}

		leaderCount := e.getCount(leader)
		space := cap_ - leaderCount
		if space <= 0 {
			for _, m := range group {
				visited[m.ID()] = true
			}
			continue
		}

		absorbed := e.absorbFollowers(leader, group, s, space, visited)
		if absorbed > 0 {
			visited[leader.ID()] = true
			e.promoteLeader(leader, leaderCount+absorbed)
			lx, ly, lz := leader.Position()
			e.record(Event{
				Kind: EventMerge, Etype: normalizeType(leader.Type()), Dim: leader.Dimension(),
				X: lx, Y: ly, Z: lz, LeaderID: leader.ID(), Count: leaderCount + absorbed, Absorbed: absorbed,
			})
		} else {
			for _, m := range group {
				visited[m.ID()] = true
			}
		}
	}

	e.defuseTamedLeaders(s)
}

// chooseCentroidLeader picks an under-capacity existing leader
// closest to the group centroid, falling back to the closest eligible
// non-leader; id breaks ties for determinism.
func (e *Engine) chooseCentroidLeader(group []world.Mob, s tuning.Settings) world.Mob {
	var cx, cy, cz float64
	for _, m := range group {
		x, y, z := m.Position()
		cx += x
		cy += y
		cz += z
	}
	n := float64(len(group))
	cx /= n
	cy /= n
	cz /= n

	closest := func(pool []world.Mob) world.Mob {
		var best world.Mob
		bestD2 := maxFloat
		var bestID world.ID
		for _, m := range pool {
			x, y, z := m.Position()
			dx, dy, dz := x-cx, y-cy, z-cz
			d2 := dx*dx + dy*dy + dz*dz
			if best == nil || d2 < bestD2 || (d2 == bestD2 && m.ID() < bestID) {
				best, bestD2, bestID = m, d2, m.ID()
			}
		}
		return best
	}

	var leaders, any []world.Mob
	for _, m := range group {
		if !e.eligibleBasic(m, s, true, true) {
			continue
		}
		if isLeader(m) {
			leaders = append(leaders, m)
		}
		any = append(any, m)
	}
	if len(leaders) > 0 {
		return closest(leaders)
	}
	if len(any) > 0 {
		return closest(any)
	}
	return nil
}

// absorbFollowers removes followers in ascending distance-to-leader
// order, adding their counts to the return value until space runs
// out. A follower whose count would overflow is skipped, not split.
func (e *Engine) absorbFollowers(leader world.Mob, group []world.Mob, s tuning.Settings, space int, visited map[world.ID]bool) int {
	lx, _, lz := leader.Position()

	followers := make([]world.Mob, 0, len(group)-1)
	for _, m := range group {
		if m.ID() != leader.ID() {
			followers = append(followers, m)
		}
	}
	d2 := func(m world.Mob) float64 {
		x, _, z := m.Position()
		dx, dz := x-lx, z-lz
		return dx*dx + dz*dz
	}
	sort.Slice(followers, func(i, j int) bool {
		di, dj := d2(followers[i]), d2(followers[j])
		if di != dj {
			return di < dj
		}
		return followers[i].ID() < followers[j].ID()
	})

	absorbed := 0
	for _, m := range followers {
		if absorbed >= space {
			break
		}
		// Re-check just before the mutation; another system may have
		// removed or changed the mob since the group formed.
		if !e.eligibleBasic(m, s, false, true) {
			continue
		}
		c := e.getCount(m)
		if absorbed+c > space {
			continue
		}
		if !e.host.Remove(m.ID()) {
			continue
		}
		delete(e.counts, m.ID())
		visited[m.ID()] = true
		absorbed += c
	}
	return absorbed
}

// drainPending tries to materialize a leader for up to a small batch
// of queued remainders. Entries stay queued until a promotion lands.
func (e *Engine) drainPending() {
	if len(e.pending) == 0 {
		return
	}
	cap_ := e.cfg.Current().MaxStackSize

	keys := make([]pendingKey, 0, len(e.pending))
	for k := range e.pending {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Dim != b.Dim {
			return a.Dim < b.Dim
		}
		if a.Etype != b.Etype {
			return a.Etype < b.Etype
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	if len(keys) > pendingDrainBatch {
		keys = keys[:pendingDrainBatch]
	}

	for _, key := range keys {
		rem := e.pending[key]
		bx := float64(key.X) + 0.5
		by := float64(key.Y) + 0.5
		bz := float64(key.Z) + 0.5
		if !e.safeSummon(key.Etype, key.Dim, bx, by, bz) {
			continue
		}
		pre := map[world.ID]bool{}
		newborn := e.findNewbornNear(key.Etype, key.Dim, bx, by, bz, pre)
		if newborn == nil {
			continue
		}
		e.promoteLeader(newborn, minInt(rem, cap_))
		delete(e.pending, key)
		e.record(Event{Kind: EventPendingDrain, Etype: key.Etype, Dim: key.Dim, X: bx, Y: by, Z: bz, Count: rem})
	}
}
