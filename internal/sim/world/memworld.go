package world

import (
	"sort"
)

// MemWorld is a deterministic in-memory Host. It is single-goroutine
// by construction (the owner drives it via Step), mirroring the
// host-tick execution model the engine assumes.
type MemWorld struct {
	tick   uint64
	nextID ID
	mobs   map[ID]*MemMob

	// SummonFails makes the next N Summon calls fail.
	SummonFails int
	// SummonReject, when set, vetoes individual summons.
	SummonReject func(etype, dim string, x, y, z float64) bool
	// SummonDelay defers materialization of summoned mobs by N
	// ticks while the Summon call itself still reports success
	// (models the host processing spawns on a later tick).
	SummonDelay uint64
	// SummonBaby makes summoned mobs spawn as babies.
	SummonBaby bool

	// Commands records every RunCommand payload.
	Commands []string

	tasks   []*memTask
	taskSeq uint64
}

type memTask struct {
	seq      uint64
	due      uint64
	period   uint64
	fn       func()
	canceled bool
}

func NewMemWorld() *MemWorld {
	return &MemWorld{nextID: 1, mobs: make(map[ID]*MemMob)}
}

// MemMob implements Mob with direct test access to its fields.
type MemMob struct {
	Id    ID
	Etype string
	Dim   string
	X     float64
	Y     float64
	Z     float64

	IsBaby  bool
	IsTamed bool
	IsDead  bool
	Invalid bool

	Tags map[string]bool

	Name        string
	NameVisible bool
	NameAlways  bool
}

func (m *MemMob) ID() ID            { return m.Id }
func (m *MemMob) Type() string      { return m.Etype }
func (m *MemMob) Dimension() string { return m.Dim }
func (m *MemMob) Position() (float64, float64, float64) {
	return m.X, m.Y, m.Z
}
func (m *MemMob) Baby() bool  { return m.IsBaby }
func (m *MemMob) Tamed() bool { return m.IsTamed }
func (m *MemMob) Valid() bool { return !m.Invalid }
func (m *MemMob) Dead() bool  { return m.IsDead }
func (m *MemMob) HasTag(tag string) bool {
	return m.Tags[tag]
}
func (m *MemMob) NameTag() string { return m.Name }

// AddMob places a mob directly, bypassing Summon. Tests use it to
// stage populations.
func (w *MemWorld) AddMob(etype, dim string, x, y, z float64) *MemMob {
	m := &MemMob{
		Id:    w.nextID,
		Etype: etype,
		Dim:   dim,
		X:     x, Y: y, Z: z,
		Tags: make(map[string]bool),
	}
	w.nextID++
	w.mobs[m.Id] = m
	return m
}

func (w *MemWorld) Mob(id ID) *MemMob { return w.mobs[id] }

func (w *MemWorld) Mobs() []Mob {
	ids := make([]ID, 0, len(w.mobs))
	for id := range w.mobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Mob, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.mobs[id])
	}
	return out
}

func (w *MemWorld) Tick() uint64 { return w.tick }

func (w *MemWorld) Summon(etype, dim string, x, y, z float64) bool {
	if w.SummonFails > 0 {
		w.SummonFails--
		return false
	}
	if w.SummonReject != nil && w.SummonReject(etype, dim, x, y, z) {
		return false
	}
	make_ := func() {
		m := w.AddMob(etype, dim, x, y, z)
		m.IsBaby = w.SummonBaby
	}
	if w.SummonDelay > 0 {
		w.After(w.SummonDelay, make_)
	} else {
		make_()
	}
	return true
}

func (w *MemWorld) Remove(id ID) bool {
	m, ok := w.mobs[id]
	if !ok || m.Invalid {
		return false
	}
	m.Invalid = true
	delete(w.mobs, id)
	return true
}

func (w *MemWorld) AddTag(id ID, tag string) bool {
	m, ok := w.mobs[id]
	if !ok {
		return false
	}
	m.Tags[tag] = true
	return true
}

func (w *MemWorld) RemoveTag(id ID, tag string) bool {
	m, ok := w.mobs[id]
	if !ok {
		return false
	}
	delete(m.Tags, tag)
	return true
}

func (w *MemWorld) SetNameTag(id ID, name string, visible, alwaysVisible bool) bool {
	m, ok := w.mobs[id]
	if !ok {
		return false
	}
	m.Name = name
	m.NameVisible = visible
	m.NameAlways = alwaysVisible
	return true
}

func (w *MemWorld) RunCommand(cmd string) bool {
	w.Commands = append(w.Commands, cmd)
	return true
}

func (w *MemWorld) After(delay uint64, fn func()) CancelFunc {
	return w.add(delay, 0, fn)
}

func (w *MemWorld) Every(delay, period uint64, fn func()) CancelFunc {
	if period == 0 {
		period = 1
	}
	return w.add(delay, period, fn)
}

func (w *MemWorld) add(delay, period uint64, fn func()) CancelFunc {
	t := &memTask{
		seq:    w.taskSeq,
		due:    w.tick + delay,
		period: period,
		fn:     fn,
	}
	w.taskSeq++
	w.tasks = append(w.tasks, t)
	return func() { t.canceled = true }
}

// Step advances n ticks, firing due tasks in (due, schedule-order)
// order. Tasks scheduled by a firing task join the same queue and can
// fire on a later tick of the same Step call.
func (w *MemWorld) Step(n int) {
	for i := 0; i < n; i++ {
		w.tick++
		w.runDue()
	}
	// Compact canceled entries so long tests don't accumulate them.
	live := w.tasks[:0]
	for _, t := range w.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	w.tasks = live
}

func (w *MemWorld) runDue() {
	for {
		var next *memTask
		for _, t := range w.tasks {
			if t.canceled || t.due > w.tick {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			return
		}
		if next.period > 0 {
			next.due = w.tick + next.period
		} else {
			next.canceled = true
		}
		next.fn()
	}
}
