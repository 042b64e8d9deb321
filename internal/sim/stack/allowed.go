package stack

import (
	"strings"

	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
)

// Legacy and shorthand ids that must collapse to one canonical type.
var idAliases = map[string]string{
	"minecraft:zombie_piglin":    "minecraft:zombified_piglin",
	"minecraft:zombified_piglin": "minecraft:zombified_piglin",
	"minecraft:zombie_pigman":    "minecraft:zombified_piglin",
}

// normalizeType lowercases, applies the default namespace, and
// resolves aliases so "Cow", "cow" and "minecraft:cow" compare equal.
func normalizeType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return t
	}
	if !strings.Contains(t, ":") {
		t = "minecraft:" + t
	}
	if a, ok := idAliases[t]; ok {
		return a
	}
	return t
}

func (e *Engine) rebuildAllowed(s tuning.Settings) {
	e.allowed = make(map[string]bool, len(s.AllowedTypes))
	for _, raw := range s.AllowedTypes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		e.allowed[normalizeType(raw)] = true
	}
	if len(e.allowed) == 0 && !e.quiet() {
		e.log.Printf("allowed_types is empty; stacking disabled until fixed")
	}
}

func (e *Engine) isAllowed(rawType string) bool {
	return e.allowed[normalizeType(rawType)]
}

func sameType(a, b world.Mob) bool {
	return normalizeType(a.Type()) == normalizeType(b.Type())
}
