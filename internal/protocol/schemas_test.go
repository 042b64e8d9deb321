package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	stateSchema := compile("state.schema.json")
	eventSchema := compile("event.schema.json")
	cmdSchema := compile("cmd.schema.json")
	resultSchema := compile("result.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "host_name":"endstone-1",
	  "capabilities":{"hurt_events":true,"interact_events":true}
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1",
	  "leader_tag":"mobstack:leader",
	  "scan_period_ticks":60
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATE",
	  "tick":1200,
	  "mobs":[
	    {"id":7,"etype":"minecraft:cow","dim":"overworld","x":10.5,"y":64.0,"z":-3.5},
	    {"id":9,"etype":"minecraft:cow","dim":"overworld","x":11.1,"y":64.0,"z":-2.9,
	     "tags":["mobstack:leader"],"name_tag":"×4 \ufeff"}
	  ]
	}`), &state)
	validate(stateSchema, state)

	var event any
	_ = json.Unmarshal([]byte(`{
	  "type":"EVENT","tick":1201,"kind":"hurt","mob_id":9,"fatal":true,"new_health":-2.0
	}`), &event)
	validate(eventSchema, event)

	var cmd any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD","seq":3,"op":"summon",
	  "etype":"minecraft:cow","dim":"overworld","x":11.5,"y":64.51,"z":-2.5
	}`), &cmd)
	validate(cmdSchema, cmd)

	var result any
	_ = json.Unmarshal([]byte(`{"type":"RESULT","seq":3,"ok":true}`), &result)
	validate(resultSchema, result)
}

func TestSchemas_RejectBadKind(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "event.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var bad any
	_ = json.Unmarshal([]byte(`{"type":"EVENT","tick":1,"kind":"explode","mob_id":1}`), &bad)
	if err := s.Validate(bad); err == nil {
		t.Fatalf("expected kind rejection")
	}
}
