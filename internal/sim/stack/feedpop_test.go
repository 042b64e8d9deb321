package stack

import (
	"testing"

	"mobstack.dev/internal/sim/world"
)

func TestFeedPopSplitsOne(t *testing.T) {
	w := world.NewMemWorld()
	lead := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 4)
	e := newTestEngine(w, testSettings())
	e.Start()

	e.HandleInteract(lead, "minecraft:wheat")

	if n, _ := parseCount(lead.Name); n != 3 {
		t.Fatalf("leader count = %d, want 3", n)
	}
	if got := len(w.Mobs()); got != 2 {
		t.Fatalf("mobs = %d, want 2 (leader plus popped singleton)", got)
	}

	// The breed cooldown blocks an immediate second pop.
	e.HandleInteract(lead, "minecraft:wheat")
	if n, _ := parseCount(lead.Name); n != 3 {
		t.Fatalf("count = %d, want 3 (cooldown must block)", n)
	}
	if got := len(w.Mobs()); got != 2 {
		t.Fatalf("mobs = %d, want 2", got)
	}
}

func TestFeedPopRequiresBreedingItem(t *testing.T) {
	w := world.NewMemWorld()
	lead := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 4)
	e := newTestEngine(w, testSettings())
	e.Start()

	e.HandleInteract(lead, "minecraft:stone")

	if n, _ := parseCount(lead.Name); n != 4 {
		t.Fatalf("count = %d, want 4 (wrong item must not pop)", n)
	}
	if got := len(w.Mobs()); got != 1 {
		t.Fatalf("mobs = %d, want 1", got)
	}
}

func TestFeedPopItemTableIsPerType(t *testing.T) {
	w := world.NewMemWorld()
	s := testSettings()
	s.AllowedTypes = append(s.AllowedTypes, "minecraft:chicken")
	lead := stageLeader(w, "minecraft:chicken", 5.5, 64, 5.5, 3)
	e := newTestEngine(w, s)
	e.Start()

	// Wheat breeds cows, not chickens.
	e.HandleInteract(lead, "minecraft:wheat")
	if n, _ := parseCount(lead.Name); n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	w.Step(7) // clear the feed cooldown window
	e.HandleInteract(lead, "minecraft:wheat_seeds")
	if n, _ := parseCount(lead.Name); n != 2 {
		t.Fatalf("count = %d, want 2 after seeds", n)
	}
}

func TestFeedPopNeverBelowOne(t *testing.T) {
	w := world.NewMemWorld()
	lead := stageLeader(w, "minecraft:cow", 5.5, 64, 5.5, 1)
	e := newTestEngine(w, testSettings())
	e.Start()

	e.HandleInteract(lead, "minecraft:wheat")

	if got := e.getCountID(lead.Id); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	if got := len(w.Mobs()); got != 1 {
		t.Fatalf("mobs = %d, want 1 (a singleton pops nothing)", got)
	}
}

func TestHandleSpawnReplacesBaby(t *testing.T) {
	w := world.NewMemWorld()
	baby := w.AddMob("minecraft:cow", "overworld", 2.5, 64, 2.5)
	baby.IsBaby = true
	e := newTestEngine(w, testSettings())
	e.Start()

	e.HandleSpawn(baby)

	if w.Mob(baby.Id) != nil {
		t.Fatalf("baby should be removed")
	}
	mobs := w.Mobs()
	if len(mobs) != 1 {
		t.Fatalf("mobs = %d, want 1 adult replacement", len(mobs))
	}
	if mobs[0].Baby() {
		t.Fatalf("replacement must be adult")
	}
}

func TestHandleSpawnReattachesReturningLeader(t *testing.T) {
	w := world.NewMemWorld()
	e := newTestEngine(w, testSettings())
	e.Start()

	// A chunk loads and a tagged leader from an earlier session walks
	// back in, unknown to the ledger.
	m := stageLeader(w, "minecraft:cow", 30.5, 64, 30.5, 7)
	e.HandleSpawn(m)

	if got := e.getCountID(m.Id); got != 7 {
		t.Fatalf("re-parsed count = %d, want 7", got)
	}
}

func TestHandleSpawnCapsReparsedCount(t *testing.T) {
	s := testSettings()
	s.MaxStackSize = 5
	w := world.NewMemWorld()
	e := newTestEngine(w, s)
	e.Start()

	m := stageLeader(w, "minecraft:cow", 30.5, 64, 30.5, 40)
	e.HandleSpawn(m)

	if got := e.getCountID(m.Id); got != 5 {
		t.Fatalf("count = %d, want clamped to 5", got)
	}
}
