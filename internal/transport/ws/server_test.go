package ws

import (
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"mobstack.dev/internal/protocol"
	"mobstack.dev/internal/sim/stack"
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

func testServer(t *testing.T, s tuning.Settings) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	cfg := tuning.Static(s)
	factory := func(host world.Host, caps world.Capabilities) *stack.Engine {
		return stack.New(host, caps, cfg, logger, nil)
	}
	srv := httptest.NewServer(NewServer(factory, cfg, logger).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, conn
}

func bridgeSettings() tuning.Settings {
	s := tuning.Defaults()
	s.AllowedTypes = []string{"minecraft:cow"}
	s.MinGroup = 2
	s.ScanPeriodTicks = 1
	s.SilenceCommandFeedback = false
	return s
}

func sayHello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		HostName:        "testhost",
		Capabilities:    protocol.HelloCapabilities{HurtEvents: true, InteractEvents: true},
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	var welcome protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	return welcome
}

func TestHandshake(t *testing.T) {
	_, conn := testServer(t, bridgeSettings())
	welcome := sayHello(t, conn)

	if welcome.Type != protocol.TypeWelcome {
		t.Fatalf("type = %q, want %q", welcome.Type, protocol.TypeWelcome)
	}
	if welcome.LeaderTag != stack.LeaderTag {
		t.Fatalf("leader tag = %q, want %q", welcome.LeaderTag, stack.LeaderTag)
	}
	if welcome.ScanPeriodTicks != 1 {
		t.Fatalf("scan period = %d, want 1", welcome.ScanPeriodTicks)
	}
	if welcome.SessionID == "" {
		t.Fatalf("missing session id")
	}
}

func TestHandshakeRejectsVersionMismatch(t *testing.T) {
	_, conn := testServer(t, bridgeSettings())
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: "0.9",
		HostName:        "oldhost",
	}
	if err := conn.WriteJSON(hello); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("server must drop a mismatched host")
	}
}

// TestMergeOverBridge drives a full host conversation: handshake, an
// empty first snapshot, then a snapshot with two adjacent cows. The
// engine must answer with remove/add_tag/set_name_tag commands, each
// of which the host acknowledges.
func TestMergeOverBridge(t *testing.T) {
	_, conn := testServer(t, bridgeSettings())
	sayHello(t, conn)

	writeState := func(tick uint64, mobs []protocol.MobState) {
		if err := conn.WriteJSON(protocol.StateMsg{Type: protocol.TypeState, Tick: tick, Mobs: mobs}); err != nil {
			t.Fatalf("write state: %v", err)
		}
	}

	writeState(1, nil)
	writeState(2, []protocol.MobState{
		{ID: 1, Etype: "minecraft:cow", Dim: "overworld", X: 0.5, Y: 64, Z: 0.5},
		{ID: 2, Etype: "minecraft:cow", Dim: "overworld", X: 1.0, Y: 64, Z: 0.5},
	})

	var ops []protocol.CmdMsg
	for len(ops) < 3 {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read cmd (have %d): %v", len(ops), err)
		}
		var cmd protocol.CmdMsg
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type != protocol.TypeCmd {
			t.Fatalf("unexpected message %s", raw)
		}
		ops = append(ops, cmd)
		res := protocol.ResultMsg{Type: protocol.TypeResult, Seq: cmd.Seq, OK: true}
		if err := conn.WriteJSON(res); err != nil {
			t.Fatalf("write result: %v", err)
		}
	}

	if ops[0].Op != protocol.OpRemove || ops[0].MobID != 2 {
		t.Fatalf("op[0] = %+v, want remove of mob 2", ops[0])
	}
	if ops[1].Op != protocol.OpAddTag || ops[1].MobID != 1 || ops[1].Tag != stack.LeaderTag {
		t.Fatalf("op[1] = %+v, want leader tag on mob 1", ops[1])
	}
	if ops[2].Op != protocol.OpSetNameTag || ops[2].MobID != 1 {
		t.Fatalf("op[2] = %+v, want name on mob 1", ops[2])
	}
	if !strings.Contains(ops[2].Name, "2") {
		t.Fatalf("name %q should encode count 2", ops[2].Name)
	}
}

// TestDeathEventOverBridge checks that a leader death reported by the
// host produces a summon command carrying the remainder.
func TestDeathEventOverBridge(t *testing.T) {
	_, conn := testServer(t, bridgeSettings())
	sayHello(t, conn)

	leaderName := "×5 \uFEFF"
	writeState := func(tick uint64, mobs []protocol.MobState) {
		if err := conn.WriteJSON(protocol.StateMsg{Type: protocol.TypeState, Tick: tick, Mobs: mobs}); err != nil {
			t.Fatalf("write state: %v", err)
		}
	}
	leader := protocol.MobState{
		ID: 9, Etype: "minecraft:cow", Dim: "overworld",
		X: 4.2, Y: 64, Z: 4.8,
		Tags: []string{stack.LeaderTag}, NameTag: leaderName,
	}
	writeState(1, []protocol.MobState{leader})

	death := protocol.EventMsg{Type: protocol.TypeEvent, Tick: 1, Kind: protocol.EventDeath, MobID: 9}
	if err := conn.WriteJSON(death); err != nil {
		t.Fatalf("write event: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var cmd protocol.CmdMsg
	if err := conn.ReadJSON(&cmd); err != nil {
		t.Fatalf("read cmd: %v", err)
	}
	if cmd.Op != protocol.OpSummon || cmd.Etype != "minecraft:cow" {
		t.Fatalf("cmd = %+v, want a cow summon", cmd)
	}
	if cmd.X != 4.5 || cmd.Z != 4.5 {
		t.Fatalf("summon at (%v,%v), want block center (4.5,4.5)", cmd.X, cmd.Z)
	}
}
