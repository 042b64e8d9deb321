package stack

import (
	"regexp"
	"strconv"
	"strings"

	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// LeaderTag marks a mob as representing a stack.
const LeaderTag = "mobstack:leader"

// nameSignature is an invisible suffix (NBSP + BOM) distinguishing
// engine-authored names from player-set ones. It doubles as the
// persistence version marker: names without it are never parsed.
const nameSignature = " \uFEFF"

const defaultLabel = "×{count}"

// countRe recovers the count from the tail of the label. The label
// must therefore end in ×N or xN: a label_format that puts {count}
// anywhere else encodes names that reindex cannot parse, and such a
// leader reverts to a singleton on restart.
var countRe = regexp.MustCompile(`(?:×|x)\s*([0-9]+)\s*$`)

func isLeader(m world.Mob) bool { return m.HasTag(LeaderTag) }

// encodeName renders the configured label for count and appends the
// signature.
func encodeName(label string, count int) string {
	if !strings.Contains(label, "{count}") {
		label = defaultLabel
	}
	return strings.ReplaceAll(label, "{count}", strconv.Itoa(count)) + nameSignature
}

// parseCount recovers a count from an engine-authored display name.
func parseCount(name string) (int, bool) {
	if name == "" || !strings.HasSuffix(name, nameSignature) {
		return 0, false
	}
	base := strings.TrimSpace(strings.TrimSuffix(name, nameSignature))
	m := countRe.FindStringSubmatch(base)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (e *Engine) updateNameTag(m world.Mob) {
	count := e.getCount(m)
	s := e.cfg.Current()
	if count < s.ShowNameForCountGE {
		e.host.SetNameTag(m.ID(), "", false, false)
		return
	}
	e.host.SetNameTag(m.ID(), encodeName(s.LabelFormat, count), true, true)
}

// promoteLeader tags m and installs count (clamped to capacity). A
// baby target is adult-replaced first; if the replacement cannot be
// resolved, the promotion is abandoned.
func (e *Engine) promoteLeader(m world.Mob, count int) {
	s := e.cfg.Current()
	if m.Baby() {
		etype := normalizeType(m.Type())
		dim := m.Dimension()
		x, y, z := m.Position()
		bx, by, bz := blockCenter(x, y, z)
		pre := e.snapshotSameBlockIDs(etype, dim, bx, by, bz)
		e.forceAdultReplace(m)
		adult := e.findNewbornByDiff(etype, dim, bx, by, bz, pre)
		if adult == nil {
			return
		}
		m = adult
	}
	e.host.AddTag(m.ID(), LeaderTag)
	c := count
	if c > s.MaxStackSize {
		c = s.MaxStackSize
	}
	e.setCount(m.ID(), c)
	e.updateNameTag(m)
}

// eligibleBasic is the shared candidacy test. Leaders only pass with
// allowLeaderSources; a non-empty name on a non-leader means a player
// named it, hands off.
func (e *Engine) eligibleBasic(m world.Mob, s tuning.Settings, requireUnderCap, allowLeaderSources bool) bool {
	if m.Dead() || !m.Valid() {
		return false
	}
	if !e.isAllowed(m.Type()) {
		return false
	}
	if m.Baby() {
		return false
	}
	if m.Tamed() && s.IgnoreTamed {
		return false
	}
	if strings.TrimSpace(m.NameTag()) != "" && !isLeader(m) {
		return false
	}
	if requireUnderCap && e.atCap(m, s) {
		return false
	}
	if isLeader(m) && !allowLeaderSources {
		return false
	}
	return true
}

// reindexFromNames rebuilds the ledger from live display names. Any
// leader whose name does not parse becomes a singleton and its name
// is cleared.
func (e *Engine) reindexFromNames() {
	e.counts = make(map[world.ID]int)
	cap_ := e.cfg.Current().MaxStackSize
	leaders := 0
	for _, m := range e.host.Mobs() {
		if !m.Valid() || m.Dead() {
			continue
		}
		id := m.ID()
		if isLeader(m) {
			if n, ok := parseCount(m.NameTag()); ok {
				if n > cap_ {
					n = cap_
				}
				e.counts[id] = n
				leaders++
			} else {
				e.counts[id] = 1
				e.host.SetNameTag(id, "", false, false)
			}
		} else {
			e.counts[id] = 1
		}
	}
	e.record(Event{Kind: EventReindex, Count: leaders})
}
