package stack

import (
	"testing"

	"mobstack.dev/internal/sim/world"
)

func TestDefuseTransfersCountToNearbyMob(t *testing.T) {
	w := world.NewMemWorld()
	tamed := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 6)
	tamed.IsTamed = true
	recipient := w.AddMob("minecraft:cow", "overworld", 6.5, 64, 5.5)

	e := newTestEngine(w, testSettings())
	e.Start()
	w.Step(1)

	if tamed.Tags[LeaderTag] {
		t.Fatalf("tamed mob must lose the leader tag")
	}
	if tamed.Name != "" {
		t.Fatalf("tamed mob name = %q, want cleared", tamed.Name)
	}
	if !recipient.Tags[LeaderTag] {
		t.Fatalf("recipient should inherit the stack")
	}
	if n, _ := parseCount(recipient.Name); n != 6 {
		t.Fatalf("recipient count = %d, want 6", n)
	}
}

func TestDefuseWithoutRecipientDiscardsCount(t *testing.T) {
	w := world.NewMemWorld()
	tamed := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 6)
	tamed.IsTamed = true

	e := newTestEngine(w, testSettings())
	e.Start()
	w.Step(1)

	if tamed.Tags[LeaderTag] || tamed.Name != "" {
		t.Fatalf("tamed mob must be fully defused (tag=%v name=%q)", tamed.Tags[LeaderTag], tamed.Name)
	}
	if len(findLeaders(w)) != 0 {
		t.Fatalf("no recipient means the count is gone")
	}
	if _, ok := e.counts[tamed.Id]; ok {
		t.Fatalf("defused mob must leave the ledger")
	}
}

func TestDefuseDisabledWhenTamedStackingAllowed(t *testing.T) {
	s := testSettings()
	s.IgnoreTamed = false
	w := world.NewMemWorld()
	tamed := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 6)
	tamed.IsTamed = true

	e := newTestEngine(w, s)
	e.Start()
	w.Step(1)

	if !tamed.Tags[LeaderTag] {
		t.Fatalf("with ignore_tamed=false a tamed leader stays a leader")
	}
	if n, _ := parseCount(tamed.Name); n != 6 {
		t.Fatalf("count = %d, want 6", n)
	}
}
