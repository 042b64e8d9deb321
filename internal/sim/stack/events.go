package stack

// Event is one observable engine action, fed to the configured
// Recorder (journal, index, both, or nothing).
type Event struct {
	Tick uint64 `json:"tick"`
	Kind string `json:"kind"`

	Etype string  `json:"etype,omitempty"`
	Dim   string  `json:"dim,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Z     float64 `json:"z,omitempty"`

	LeaderID int64 `json:"leader_id,omitempty"`
	// Count is the count carried by the action: total after a merge,
	// remaining after a death, queued amount for pending events.
	Count int `json:"count,omitempty"`
	// Absorbed is the number of units a merge added.
	Absorbed int `json:"absorbed,omitempty"`
}

const (
	EventMerge          = "merge"
	EventLeaderDeath    = "leader_death"
	EventPendingEnqueue = "pending_enqueue"
	EventPendingDrain   = "pending_drain"
	EventFeedSplit      = "feed_split"
	EventDefuse         = "defuse"
	EventReindex        = "reindex"
)

type Recorder interface {
	Record(Event)
}

func (e *Engine) record(ev Event) {
	if e.rec == nil {
		return
	}
	ev.Tick = e.nowTicks()
	e.rec.Record(ev)
}
