package tuning

import (
	"os"
	"time"
)

// Watcher holds the current Settings and reloads them when the file's
// mtime moves. The engine polls once per scan cycle.
type Watcher struct {
	path  string
	mtime time.Time
	cur   Settings
}

// NewWatcher loads path (creating an example file first if absent)
// and returns the watcher plus any load error. The watcher is usable
// either way; on error it carries Defaults().
func NewWatcher(path string) (*Watcher, error) {
	_ = WriteExample(path)
	s, err := Load(path)
	w := &Watcher{path: path, cur: s}
	if fi, statErr := os.Stat(path); statErr == nil {
		w.mtime = fi.ModTime()
	}
	return w, err
}

// Static wraps fixed settings with no backing file; Poll never
// reloads.
func Static(s Settings) *Watcher {
	return &Watcher{cur: sanitize(s)}
}

func (w *Watcher) Current() Settings { return w.cur }

// Poll re-reads the file if its mtime changed since the last load.
// Returns the active settings and whether a reload happened. A reload
// that fails to parse keeps defaults active and still reports true so
// the caller can log once and rebuild caches.
func (w *Watcher) Poll() (Settings, bool, error) {
	fi, err := os.Stat(w.path)
	if err != nil {
		return w.cur, false, nil
	}
	if fi.ModTime().Equal(w.mtime) {
		return w.cur, false, nil
	}
	w.mtime = fi.ModTime()
	s, err := Load(w.path)
	w.cur = s
	return w.cur, true, err
}
