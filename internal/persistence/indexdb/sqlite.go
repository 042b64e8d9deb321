// Package indexdb keeps a queryable read-model of engine events in
// sqlite. It never holds authoritative state: leader counts live only
// in display names, and the journal remains the event source of
// truth. Writes go through a single goroutine so the engine thread
// never blocks on the database.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"mobstack.dev/internal/sim/stack"
)

type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	seq    uint64
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Index{
		db: db,
		// Buffered so a merge-heavy scan does not stall the engine.
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL durability is fine
	// for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			etype TEXT NOT NULL,
			dim TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			leader_id INTEGER NOT NULL,
			count INTEGER NOT NULL,
			absorbed INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_tick ON events(kind, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_events_etype_tick ON events(etype, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Index) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

type req struct {
	ev  stack.Event
	ack chan struct{} // set only by Flush sentinels
}

// Record implements stack.Recorder. Events are dropped rather than
// blocking when the indexer falls behind; the journal keeps the full
// stream.
func (s *Index) Record(ev stack.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{ev: ev}:
	default:
	}
}

func (s *Index) loop() {
	for r := range s.ch {
		if r.ack != nil {
			close(r.ack)
			continue
		}
		ev := r.ev
		s.seq++
		raw, _ := json.Marshal(ev)
		_, _ = s.db.Exec(
			`INSERT INTO events (seq, tick, kind, etype, dim, x, y, z, leader_id, count, absorbed, raw_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.seq, ev.Tick, ev.Kind, ev.Etype, ev.Dim, ev.X, ev.Y, ev.Z, ev.LeaderID, ev.Count, ev.Absorbed, string(raw),
		)
	}
}

// Flush blocks until everything queued before it has been written.
func (s *Index) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	ack := make(chan struct{})
	s.ch <- req{ack: ack}
	<-ack
}

// TotalsByKind sums event counts per kind.
func (s *Index) TotalsByKind() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*), COALESCE(SUM(count),0) FROM events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n, sum int
		if err := rows.Scan(&kind, &n, &sum); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// Recent returns up to limit most recent events, newest first.
func (s *Index) Recent(limit int) ([]stack.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT raw_json FROM events ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stack.Event
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ev stack.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
