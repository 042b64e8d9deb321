package protocol

// HELLO (host -> engine)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	HostName        string            `json:"host_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

// HelloCapabilities mirrors the host's optional notification surface.
// Missing capabilities degrade the matching engine feature.
type HelloCapabilities struct {
	HurtEvents     bool `json:"hurt_events,omitempty"`
	InteractEvents bool `json:"interact_events,omitempty"`
}

// WELCOME (engine -> host)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	LeaderTag       string `json:"leader_tag"`
	ScanPeriodTicks int    `json:"scan_period_ticks"`
}

// STATE (host -> engine): the full live-mob snapshot for one tick.
// The bridge treats each STATE as authoritative and discards the
// previous one.
type StateMsg struct {
	Type string     `json:"type"`
	Tick uint64     `json:"tick"`
	Mobs []MobState `json:"mobs"`
}

type MobState struct {
	ID    int64   `json:"id"`
	Etype string  `json:"etype"`
	Dim   string  `json:"dim"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`

	Baby  bool `json:"baby,omitempty"`
	Tamed bool `json:"tamed,omitempty"`
	Dead  bool `json:"dead,omitempty"`

	Tags    []string `json:"tags,omitempty"`
	NameTag string   `json:"name_tag,omitempty"`
}

// Event kinds.
const (
	EventHurt     = "hurt"
	EventDeath    = "death"
	EventInteract = "interact"
	EventSpawn    = "spawn"
)

// EVENT (host -> engine)
type EventMsg struct {
	Type  string `json:"type"`
	Tick  uint64 `json:"tick"`
	Kind  string `json:"kind"`
	MobID int64  `json:"mob_id"`

	// hurt only; pointers distinguish "absent" from zero.
	Fatal     *bool    `json:"fatal,omitempty"`
	NewHealth *float64 `json:"new_health,omitempty"`

	// interact only: held item type id, empty when unknown.
	Item string `json:"item,omitempty"`
}

// Command ops.
const (
	OpSummon     = "summon"
	OpRemove     = "remove"
	OpAddTag     = "add_tag"
	OpRemoveTag  = "remove_tag"
	OpSetNameTag = "set_name_tag"
	OpRaw        = "raw"
)

// CMD (engine -> host). The host answers every CMD with a RESULT
// carrying the same seq before it processes anything else.
type CmdMsg struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Op   string `json:"op"`

	// summon
	Etype string  `json:"etype,omitempty"`
	Dim   string  `json:"dim,omitempty"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	Z     float64 `json:"z,omitempty"`

	// remove / tags / name
	MobID int64  `json:"mob_id,omitempty"`
	Tag   string `json:"tag,omitempty"`

	Name          string `json:"name,omitempty"`
	Visible       bool   `json:"visible,omitempty"`
	AlwaysVisible bool   `json:"always_visible,omitempty"`

	// raw
	Raw string `json:"raw,omitempty"`
}

// RESULT (host -> engine)
type ResultMsg struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	OK   bool   `json:"ok"`
}
