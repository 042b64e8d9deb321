// Package world defines the narrow capability surface the stacking
// engine is allowed to see of a live game host: read-only mob views,
// side-effecting world actions, and the host tick scheduler. Hosts
// implement it once per server flavor; MemWorld is the in-memory
// implementation used by tests.
package world

// ID is a per-world-lifetime runtime id assigned by the host. It is
// not stable across entity destruction/recreation.
type ID = int64

// Mob is a read-only adapter over one live creature.
type Mob interface {
	ID() ID
	// Type is the raw type identifier as the host reports it
	// (callers normalize it).
	Type() string
	// Dimension is an opaque dimension token ("overworld",
	// "the_nether", "the_end" on Minecraft-family hosts).
	Dimension() string
	Position() (x, y, z float64)

	Baby() bool
	Tamed() bool
	Valid() bool
	Dead() bool

	HasTag(tag string) bool
	NameTag() string
}

// Host is the side-effecting world surface. Every mutation reports
// success as a bool: an invalid or already-removed target is a normal
// false, never a panic. The engine decides retry/queue policy.
type Host interface {
	// Mobs lists all live mobs. Enumeration order is host-defined;
	// callers that need determinism sort by ID.
	Mobs() []Mob

	// Tick is the host's monotonic game-tick counter.
	Tick() uint64

	// Summon asks the host to create one mob of etype at the exact
	// coordinates. False means the host rejected the spawn (solid
	// block, unloaded chunk, permissions).
	Summon(etype, dim string, x, y, z float64) bool

	Remove(id ID) bool
	AddTag(id ID, tag string) bool
	RemoveTag(id ID, tag string) bool
	// SetNameTag sets the display name. alwaysVisible only matters
	// when visible is true.
	SetNameTag(id ID, name string, visible, alwaysVisible bool) bool

	// RunCommand executes a raw host command (console-level, muted).
	RunCommand(cmd string) bool

	Scheduler
}

// Scheduler schedules engine callbacks on the host tick thread. All
// callbacks run serially with event delivery; nothing preempts.
type Scheduler interface {
	// After runs fn once, delay ticks from now.
	After(delay uint64, fn func()) CancelFunc
	// Every runs fn each period ticks, first after delay.
	Every(delay, period uint64, fn func()) CancelFunc
}

// CancelFunc drops a scheduled callback. Safe to call more than once
// and after the callback has fired.
type CancelFunc func()

// Capabilities reports which optional host notifications exist. A
// missing capability degrades the matching engine feature instead of
// failing startup.
type Capabilities struct {
	HurtEvents     bool
	InteractEvents bool
}
