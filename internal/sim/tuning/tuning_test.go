package tuning

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("want error for missing file")
	}
	if !reflect.DeepEqual(s, Defaults()) {
		t.Fatalf("missing file must yield defaults, got %+v", s)
	}
}

func TestWriteExampleLoadsAsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacking.yaml")
	if err := WriteExample(path); err != nil {
		t.Fatalf("write example: %v", err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load example: %v", err)
	}
	if s.Radius != 3.0 || s.MinGroup != 5 || s.MaxStackSize != 100 || s.ScanPeriodTicks != 60 {
		t.Fatalf("example does not match defaults: %+v", s)
	}
	if len(s.AllowedTypes) != 0 {
		t.Fatalf("example ships with an empty allow list, got %v", s.AllowedTypes)
	}
}

func TestLoadSanitizesBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacking.yaml")
	doc := `stacking:
  radius: -5
  min_group: 0
  max_stack_size: 0
  scan_period_ticks: -3
  label_format: ""
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Radius != Defaults().Radius {
		t.Fatalf("radius = %v, want default", s.Radius)
	}
	if s.MinGroup != 1 || s.MaxStackSize != 1 || s.ScanPeriodTicks != 1 {
		t.Fatalf("floors not applied: %+v", s)
	}
	if s.LabelFormat != Defaults().LabelFormat {
		t.Fatalf("label = %q, want default", s.LabelFormat)
	}
}

func TestLoadParseFailureKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacking.yaml")
	if err := os.WriteFile(path, []byte("stacking: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err == nil {
		t.Fatalf("want parse error")
	}
	if !reflect.DeepEqual(s, Defaults()) {
		t.Fatalf("broken file must yield defaults")
	}
}

func TestWatcherPollPicksUpEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stacking.yaml")
	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	if w.Current().Radius != 3.0 {
		t.Fatalf("radius = %v, want 3.0", w.Current().Radius)
	}

	if _, reloaded, _ := w.Poll(); reloaded {
		t.Fatalf("untouched file must not reload")
	}

	doc := "stacking:\n  radius: 7.5\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	// Force an mtime change; write granularity can be coarser than
	// the test.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	s, reloaded, err := w.Poll()
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !reloaded {
		t.Fatalf("edited file must reload")
	}
	if s.Radius != 7.5 {
		t.Fatalf("radius = %v, want 7.5", s.Radius)
	}
}

func TestStaticNeverReloads(t *testing.T) {
	s := Defaults()
	s.Radius = 9
	w := Static(s)
	if w.Current().Radius != 9 {
		t.Fatalf("radius = %v, want 9", w.Current().Radius)
	}
	if _, reloaded, _ := w.Poll(); reloaded {
		t.Fatalf("static watcher must never reload")
	}
}
