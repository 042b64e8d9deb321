package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"mobstack.dev/internal/persistence/journal"
	"mobstack.dev/internal/sim/stack"
)

// replay prints the event journal of a stacking run, optionally
// filtered, and closes with per-kind totals. Useful for answering
// "where did that stack of 40 cows go".
func main() {
	var (
		dir      = flag.String("journal", "./data/journal", "journal directory containing stack-*.jsonl.zst")
		kind     = flag.String("kind", "", "only print events of this kind (merge, leader_death, ...)")
		etype    = flag.String("etype", "", "only print events for this entity type")
		fromTick = flag.Uint64("from_tick", 0, "start at tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		quiet    = flag.Bool("quiet", false, "suppress per-event lines, print totals only")
	)
	flag.Parse()

	files, err := journal.ListFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no journal files found in", *dir)
		os.Exit(1)
	}

	totals := make(map[string]int)
	var printed uint64
	for _, path := range files {
		err := journal.ReadFile(path, func(ev stack.Event) bool {
			if ev.Tick < *fromTick {
				return true
			}
			if *toTick != 0 && ev.Tick > *toTick {
				return false
			}
			if *kind != "" && ev.Kind != *kind {
				return true
			}
			if *etype != "" && !strings.EqualFold(ev.Etype, *etype) {
				return true
			}
			totals[ev.Kind]++
			printed++
			if !*quiet {
				printEvent(ev)
			}
			return true
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read journal:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("events=%d files=%d\n", printed, len(files))
	for _, k := range []string{
		stack.EventMerge, stack.EventLeaderDeath, stack.EventPendingEnqueue,
		stack.EventPendingDrain, stack.EventFeedSplit, stack.EventDefuse, stack.EventReindex,
	} {
		if n := totals[k]; n > 0 {
			fmt.Printf("  %-16s %d\n", k, n)
		}
	}
}

func printEvent(ev stack.Event) {
	fmt.Printf("tick=%d %s %s dim=%s pos=(%.1f,%.1f,%.1f) leader=%d count=%d absorbed=%d\n",
		ev.Tick, ev.Kind, ev.Etype, ev.Dim, ev.X, ev.Y, ev.Z, ev.LeaderID, ev.Count, ev.Absorbed)
}
