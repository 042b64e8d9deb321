package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is one immutable load of stacking.yaml. The engine never
// mutates it; a reload produces a fresh value.
type Settings struct {
	Enabled bool `yaml:"enabled"`

	Radius       float64 `yaml:"radius"`
	MinGroup     int     `yaml:"min_group"`
	MaxStackSize int     `yaml:"max_stack_size"`

	ScanPeriodTicks int `yaml:"scan_period_ticks"`

	LabelFormat        string `yaml:"label_format"`
	ShowNameForCountGE int    `yaml:"show_name_for_count_ge"`

	IgnoreTamed bool `yaml:"ignore_tamed"`

	FeedPopEnabled            bool `yaml:"feed_pop_enabled"`
	FeedPopRequireItem        bool `yaml:"feed_pop_require_item"`
	FeedPopCooldownTicks      int  `yaml:"feed_pop_cooldown_ticks"`
	FeedPopBreedCooldownTicks int  `yaml:"feed_pop_breed_cooldown_ticks"`

	HandleLethalOnHurt   bool `yaml:"handle_lethal_on_hurt"`
	AllowLeaderPairMerge bool `yaml:"allow_leader_pair_merge"`

	QuietConsole           bool `yaml:"quiet_console"`
	SilenceCommandFeedback bool `yaml:"silence_command_feedback"`

	AllowedTypes []string `yaml:"allowed_types"`
}

func Defaults() Settings {
	return Settings{
		Enabled:                   true,
		Radius:                    3.0,
		MinGroup:                  5,
		MaxStackSize:              100,
		ScanPeriodTicks:           60,
		LabelFormat:               "×{count}",
		ShowNameForCountGE:        2,
		IgnoreTamed:               true,
		FeedPopEnabled:            true,
		FeedPopRequireItem:        true,
		FeedPopCooldownTicks:      6,
		FeedPopBreedCooldownTicks: 6000,
		HandleLethalOnHurt:        true,
		AllowLeaderPairMerge:      false,
		QuietConsole:              true,
		SilenceCommandFeedback:    true,
		AllowedTypes:              nil,
	}
}

// file wraps Settings so the on-disk document keeps a top-level
// stacking: section.
type file struct {
	Stacking Settings `yaml:"stacking"`
}

// Load reads path and merges it over Defaults(). A parse failure
// returns Defaults() together with the error so the caller can keep
// running: configuration errors are non-fatal by design.
func Load(path string) (Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), err
	}
	f := file{Stacking: Defaults()}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Defaults(), fmt.Errorf("stacking.yaml: %w", err)
	}
	return sanitize(f.Stacking), nil
}

func sanitize(s Settings) Settings {
	if s.Radius <= 0 {
		s.Radius = Defaults().Radius
	}
	if s.MinGroup < 1 {
		s.MinGroup = 1
	}
	if s.MaxStackSize < 1 {
		s.MaxStackSize = 1
	}
	if s.ScanPeriodTicks < 1 {
		s.ScanPeriodTicks = 1
	}
	if s.LabelFormat == "" {
		s.LabelFormat = Defaults().LabelFormat
	}
	if s.FeedPopCooldownTicks < 0 {
		s.FeedPopCooldownTicks = 0
	}
	if s.FeedPopBreedCooldownTicks < 0 {
		s.FeedPopBreedCooldownTicks = 0
	}
	return s
}

const exampleFile = `# ===================== mob stacking — stacking.yaml =====================
# Distances are in blocks. Time is in ticks (20 ticks ~= 1 second).

stacking:
  enabled: true
  radius: 3.0
  min_group: 5
  max_stack_size: 100
  scan_period_ticks: 60
  label_format: "×{count}"
  show_name_for_count_ge: 2
  ignore_tamed: true

  # Feed-to-pop
  feed_pop_enabled: true
  feed_pop_require_item: true
  feed_pop_cooldown_ticks: 6
  feed_pop_breed_cooldown_ticks: 6000

  # Lethal-on-hurt (strict). If false, only death events decrement.
  handle_lethal_on_hurt: true

  # Pair-merge of leaders within radius before min_group (off by default)
  allow_leader_pair_merge: false

  quiet_console: true
  silence_command_feedback: true

  # Only mobs in this list will stack.
  allowed_types: []
  #  - "minecraft:cow"
  #  - "minecraft:sheep"
  #  - "minecraft:chicken"
  #  - "minecraft:pig"
`

// WriteExample creates a commented example config at path if nothing
// is there yet.
func WriteExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(exampleFile), 0o644)
}
