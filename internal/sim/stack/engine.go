// Package stack compresses dense mob populations: nearby eligible
// mobs of one type merge into a single tagged "leader" whose display
// name encodes how many it stands for, and that count is split back
// out on death, feeding, or taming. The engine owns all bookkeeping;
// the live world is reached only through world.Host.
package stack

import (
	"log"

	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

type Engine struct {
	host world.Host
	caps world.Capabilities
	cfg  *tuning.Watcher
	log  *log.Logger
	rec  Recorder

	allowed map[string]bool

	// counts maps runtime id -> represented count. Absent means 1.
	counts  map[world.ID]int
	pending map[pendingKey]int

	breedCooldownUntil map[world.ID]uint64
	lastFeedPop        map[world.ID]uint64
	deathHandledAt     map[world.ID]uint64

	prunePhase int

	scanCancel world.CancelFunc
	scanPeriod uint64
	cancels    map[uint64]world.CancelFunc
	cancelSeq  uint64
	closed     bool
}

// pendingKey identifies an un-attached remaining count: a rounded
// block location plus a normalized type.
type pendingKey struct {
	Dim     string
	X, Y, Z int
	Etype   string
}

// New builds an engine over host. rec may be nil. The engine does
// nothing until Start.
func New(host world.Host, caps world.Capabilities, cfg *tuning.Watcher, logger *log.Logger, rec Recorder) *Engine {
	return &Engine{
		host:               host,
		caps:               caps,
		cfg:                cfg,
		log:                logger,
		rec:                rec,
		allowed:            make(map[string]bool),
		counts:             make(map[world.ID]int),
		pending:            make(map[pendingKey]int),
		breedCooldownUntil: make(map[world.ID]uint64),
		lastFeedPop:        make(map[world.ID]uint64),
		deathHandledAt:     make(map[world.ID]uint64),
		cancels:            make(map[uint64]world.CancelFunc),
	}
}

// Start rebuilds caches from live world state and schedules the
// periodic scan.
func (e *Engine) Start() {
	s := e.cfg.Current()
	e.rebuildAllowed(s)

	if s.SilenceCommandFeedback {
		e.host.RunCommand("gamerule sendcommandfeedback false")
		e.host.RunCommand("gamerule commandblockoutput false")
	}

	e.reindexFromNames()
	e.scheduleScan(uint64(s.ScanPeriodTicks))

	if !e.quiet() {
		e.log.Printf("stacking enabled (radius=%.1f, min_group=%d, max_stack=%d; %d allowed types)",
			s.Radius, s.MinGroup, s.MaxStackSize, len(e.allowed))
		if !e.caps.InteractEvents || !s.FeedPopEnabled {
			e.log.Printf("feed-pop disabled (no interact events or config disabled)")
		}
		if !e.caps.HurtEvents && s.HandleLethalOnHurt {
			e.log.Printf("lethal-on-hurt unavailable (host has no hurt events); relying on death events only")
		}
	}
}

// Close cancels the periodic scan and every outstanding retry. No
// scheduled callback touches engine state afterwards.
func (e *Engine) Close() {
	e.closed = true
	if e.scanCancel != nil {
		e.scanCancel()
		e.scanCancel = nil
	}
	for id, c := range e.cancels {
		c()
		delete(e.cancels, id)
	}
}

func (e *Engine) scheduleScan(period uint64) {
	if period < 1 {
		period = 1
	}
	if e.scanCancel != nil {
		e.scanCancel()
	}
	e.scanPeriod = period
	e.scanCancel = e.host.Every(0, period, e.scan)
}

// after schedules fn once and tracks the cancel handle so Close can
// drop it. Fired callbacks self-deregister.
func (e *Engine) after(delay uint64, fn func()) {
	id := e.cancelSeq
	e.cancelSeq++
	e.cancels[id] = e.host.After(delay, func() {
		delete(e.cancels, id)
		if e.closed {
			return
		}
		fn()
	})
}

func (e *Engine) quiet() bool { return e.cfg.Current().QuietConsole }

func (e *Engine) nowTicks() uint64 { return e.host.Tick() }

// PendingTotal reports the summed un-attached count in the pending
// queue (diagnostics and tests).
func (e *Engine) PendingTotal() int {
	total := 0
	for _, n := range e.pending {
		total += n
	}
	return total
}
