package ws

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"mobstack.dev/internal/protocol"
	"mobstack.dev/internal/sim/stack"
	"mobstack.dev/internal/sim/world"
)

// How long a removed mob's view is kept for late events (a death
// notification usually arrives after the mob left the snapshot).
const goneRetentionTicks = 100

const resultTimeout = 5 * time.Second
const idleTimeout = 60 * time.Second

// session adapts one host connection to world.Host. Everything runs
// on the reader goroutine: STATE/EVENT dispatch, scheduled engine
// callbacks, and the nested read that collects command RESULTs. That
// preserves the engine's single-logical-thread model end to end.
type session struct {
	conn *websocket.Conn
	log  *log.Logger

	engine  *stack.Engine
	started bool

	tick uint64
	mobs map[int64]*mobView
	// gone holds views of mobs that dropped out of the snapshot,
	// keyed by id, with the tick they vanished.
	gone map[int64]goneView

	seq     uint64
	backlog [][]byte
	dead    bool

	tasks   []*task
	taskSeq uint64
}

type goneView struct {
	view *mobView
	at   uint64
}

type task struct {
	seq      uint64
	due      uint64
	period   uint64
	fn       func()
	canceled bool
}

func newSession(conn *websocket.Conn, logger *log.Logger) *session {
	return &session{
		conn: conn,
		log:  logger,
		mobs: make(map[int64]*mobView),
		gone: make(map[int64]goneView),
	}
}

// run is the session main loop. It returns when the connection dies.
func (s *session) run() {
	for !s.dead {
		raw, ok := s.next()
		if !ok {
			return
		}
		s.dispatch(raw)
	}
}

// next pops a backlogged message or reads a fresh one.
func (s *session) next() ([]byte, bool) {
	if len(s.backlog) > 0 {
		raw := s.backlog[0]
		s.backlog = s.backlog[1:]
		return raw, true
	}
	return s.read(idleTimeout)
}

func (s *session) read(timeout time.Duration) ([]byte, bool) {
	_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		s.dead = true
		return nil, false
	}
	return raw, true
}

func (s *session) dispatch(raw []byte) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeState:
		var st protocol.StateMsg
		if err := json.Unmarshal(raw, &st); err != nil {
			return
		}
		s.applyState(st)
	case protocol.TypeEvent:
		var ev protocol.EventMsg
		if err := json.Unmarshal(raw, &ev); err != nil {
			return
		}
		s.applyEvent(ev)
	case protocol.TypeResult:
		// Stale result from a timed-out command; drop it.
	}
}

func (s *session) applyState(st protocol.StateMsg) {
	prevTick := s.tick

	next := make(map[int64]*mobView, len(st.Mobs))
	for _, m := range st.Mobs {
		next[m.ID] = &mobView{state: m}
	}
	for id, v := range s.mobs {
		if _, still := next[id]; !still {
			v.invalid = true
			s.gone[id] = goneView{view: v, at: st.Tick}
		}
	}
	for id, g := range s.gone {
		if st.Tick > g.at+goneRetentionTicks {
			delete(s.gone, id)
		}
	}
	s.mobs = next

	if !s.started {
		s.tick = st.Tick
		s.started = true
		s.engine.Start()
		return
	}

	// Fire scheduled callbacks for every tick crossed, in order.
	for t := prevTick + 1; t <= st.Tick; t++ {
		s.tick = t
		s.runDue()
	}
	s.tick = st.Tick
}

func (s *session) applyEvent(ev protocol.EventMsg) {
	m := s.lookup(ev.MobID)
	if m == nil {
		return
	}
	switch ev.Kind {
	case protocol.EventHurt:
		info := stack.HurtInfo{}
		if ev.Fatal != nil {
			info.Fatal, info.FatalKnown = *ev.Fatal, true
		}
		if ev.NewHealth != nil {
			info.NewHealth, info.NewHealthKnown = *ev.NewHealth, true
		}
		s.engine.HandleHurt(m, info)
	case protocol.EventDeath:
		s.engine.HandleDeath(m)
	case protocol.EventInteract:
		s.engine.HandleInteract(m, ev.Item)
	case protocol.EventSpawn:
		s.engine.HandleSpawn(m)
	}
}

func (s *session) lookup(id int64) *mobView {
	if m, ok := s.mobs[id]; ok {
		return m
	}
	if g, ok := s.gone[id]; ok {
		return g.view
	}
	return nil
}

// ---- world.Host ----

func (s *session) Mobs() []world.Mob {
	ids := make([]int64, 0, len(s.mobs))
	for id := range s.mobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]world.Mob, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.mobs[id])
	}
	return out
}

func (s *session) Tick() uint64 { return s.tick }

func (s *session) Summon(etype, dim string, x, y, z float64) bool {
	return s.command(protocol.CmdMsg{Op: protocol.OpSummon, Etype: etype, Dim: dim, X: x, Y: y, Z: z})
}

func (s *session) Remove(id world.ID) bool {
	ok := s.command(protocol.CmdMsg{Op: protocol.OpRemove, MobID: id})
	if ok {
		if v, exists := s.mobs[id]; exists {
			v.invalid = true
			delete(s.mobs, id)
		}
	}
	return ok
}

func (s *session) AddTag(id world.ID, tag string) bool {
	ok := s.command(protocol.CmdMsg{Op: protocol.OpAddTag, MobID: id, Tag: tag})
	if ok {
		if v, exists := s.mobs[id]; exists {
			v.addTag(tag)
		}
	}
	return ok
}

func (s *session) RemoveTag(id world.ID, tag string) bool {
	ok := s.command(protocol.CmdMsg{Op: protocol.OpRemoveTag, MobID: id, Tag: tag})
	if ok {
		if v, exists := s.mobs[id]; exists {
			v.removeTag(tag)
		}
	}
	return ok
}

func (s *session) SetNameTag(id world.ID, name string, visible, alwaysVisible bool) bool {
	ok := s.command(protocol.CmdMsg{
		Op: protocol.OpSetNameTag, MobID: id,
		Name: name, Visible: visible, AlwaysVisible: alwaysVisible,
	})
	if ok {
		if v, exists := s.mobs[id]; exists {
			v.state.NameTag = name
		}
	}
	return ok
}

func (s *session) RunCommand(cmd string) bool {
	return s.command(protocol.CmdMsg{Op: protocol.OpRaw, Raw: cmd})
}

// command sends one CMD and reads until its RESULT, stashing every
// other message for the main loop. The local snapshot is only
// adjusted after a positive result.
func (s *session) command(cmd protocol.CmdMsg) bool {
	if s.dead {
		return false
	}
	s.seq++
	cmd.Type = protocol.TypeCmd
	cmd.Seq = s.seq

	_ = s.conn.SetWriteDeadline(time.Now().Add(resultTimeout))
	if err := s.conn.WriteJSON(cmd); err != nil {
		s.dead = true
		return false
	}

	deadline := time.Now().Add(resultTimeout)
	for {
		if time.Now().After(deadline) {
			return false
		}
		raw, ok := s.read(time.Until(deadline))
		if !ok {
			return false
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		if base.Type != protocol.TypeResult {
			s.backlog = append(s.backlog, raw)
			continue
		}
		var res protocol.ResultMsg
		if err := json.Unmarshal(raw, &res); err != nil {
			continue
		}
		if res.Seq != cmd.Seq {
			continue
		}
		return res.OK
	}
}

// ---- world.Scheduler ----

func (s *session) After(delay uint64, fn func()) world.CancelFunc {
	return s.add(delay, 0, fn)
}

func (s *session) Every(delay, period uint64, fn func()) world.CancelFunc {
	if period == 0 {
		period = 1
	}
	return s.add(delay, period, fn)
}

func (s *session) add(delay, period uint64, fn func()) world.CancelFunc {
	t := &task{seq: s.taskSeq, due: s.tick + delay, period: period, fn: fn}
	s.taskSeq++
	s.tasks = append(s.tasks, t)
	return func() { t.canceled = true }
}

func (s *session) runDue() {
	for {
		var next *task
		for _, t := range s.tasks {
			if t.canceled || t.due > s.tick {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.period > 0 {
			next.due = s.tick + next.period
		} else {
			next.canceled = true
		}
		next.fn()
		if s.dead {
			return
		}
	}
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	s.tasks = live
}

// mobView implements world.Mob over the latest snapshot row.
type mobView struct {
	state   protocol.MobState
	extra   map[string]bool // tags added locally this session
	removed map[string]bool // tags removed locally
	invalid bool
}

func (v *mobView) ID() world.ID      { return v.state.ID }
func (v *mobView) Type() string      { return v.state.Etype }
func (v *mobView) Dimension() string { return v.state.Dim }
func (v *mobView) Position() (float64, float64, float64) {
	return v.state.X, v.state.Y, v.state.Z
}
func (v *mobView) Baby() bool  { return v.state.Baby }
func (v *mobView) Tamed() bool { return v.state.Tamed }
func (v *mobView) Valid() bool { return !v.invalid }
func (v *mobView) Dead() bool  { return v.state.Dead }

func (v *mobView) HasTag(tag string) bool {
	if v.removed[tag] {
		return false
	}
	if v.extra[tag] {
		return true
	}
	for _, t := range v.state.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (v *mobView) NameTag() string { return v.state.NameTag }

func (v *mobView) addTag(tag string) {
	delete(v.removed, tag)
	if v.extra == nil {
		v.extra = make(map[string]bool)
	}
	v.extra[tag] = true
}

func (v *mobView) removeTag(tag string) {
	delete(v.extra, tag)
	if v.removed == nil {
		v.removed = make(map[string]bool)
	}
	v.removed[tag] = true
}

func (v *mobView) String() string {
	return fmt.Sprintf("mob(%d %s)", v.state.ID, v.state.Etype)
}
