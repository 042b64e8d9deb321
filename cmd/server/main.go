package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mobstack.dev/internal/persistence/indexdb"
	"mobstack.dev/internal/persistence/journal"
	"mobstack.dev/internal/sim/stack"
	"mobstack.dev/internal/sim/tuning"
	"mobstack.dev/internal/sim/world"
	"mobstack.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to stacking.yaml (default: <data>/stacking.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite event index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	_ = os.MkdirAll(*dataDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*dataDir, "stacking.yaml")
	}
	cfg, err := tuning.NewWatcher(tp)
	if err != nil {
		logger.Printf("tuning: %v (using defaults)", err)
	}

	jw := journal.NewWriter(filepath.Join(*dataDir, "journal"))
	defer jw.Close()

	var idx *indexdb.Index
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(*dataDir, "index", "events.db"))
		if err != nil {
			logger.Fatalf("open event index: %v", err)
		}
		defer idx.Close()
	}
	rec := multiRecorder{a: jw, b: idx}

	factory := func(host world.Host, caps world.Capabilities) *stack.Engine {
		return stack.New(host, caps, cfg, logger, rec)
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/stats", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		if idx == nil {
			_ = json.NewEncoder(rw).Encode(map[string]any{"index": "disabled"})
			return
		}
		idx.Flush()
		totals, err := idx.TotalsByKind()
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		limit := 50
		if q := r.URL.Query().Get("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil {
				limit = n
			}
		}
		recent, err := idx.Recent(limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"totals_by_kind": totals,
			"recent":         recent,
		})
	})
	if envBool("MS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(factory, cfg, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// multiRecorder fans one event out to the journal and the index.
// Either sink may be nil.
type multiRecorder struct {
	a stack.Recorder
	b *indexdb.Index
}

func (m multiRecorder) Record(ev stack.Event) {
	if m.a != nil {
		m.a.Record(ev)
	}
	if m.b != nil {
		m.b.Record(ev)
	}
}
