package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	persistlog "navmotion.ai/internal/persistence/log"
	"navmotion.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "launches":
			launchesCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "waypoints":
			waypointsCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// tickRange selects ticks in [From, To]; To == 0 means open ended.
type tickRange struct {
	From, To uint64
}

func (r tickRange) has(t uint64) bool  { return t >= r.From && (r.To == 0 || t <= r.To) }
func (r tickRange) past(t uint64) bool { return r.To != 0 && t > r.To }

var errStop = errors.New("stop")

func launchesCmd(args []string) {
	fs := flag.NewFlagSet("launches", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	unit := fs.Uint64("unit", 0, "unit filter (0 = all)")
	gen := fs.String("generator", "", "generator filter, e.g. CHASE")
	from := fs.Uint64("from_tick", 0, "first tick (inclusive)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, "launches")
	n, err := scanLaunches(dir, *unit, strings.ToUpper(strings.TrimSpace(*gen)), tickRange{*from, *to}, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "launches:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d launches\n", n)
}

// scanLaunches prints matching launch records from dir as JSON lines.
func scanLaunches(dir string, unit uint64, gen string, r tickRange, out io.Writer) (int, error) {
	files, err := persistlog.Files(dir, "launches")
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	n := 0
	for _, f := range files {
		err := persistlog.ReadLaunches(f, func(rec persistlog.LaunchRecord) error {
			if r.past(rec.Tick) {
				return errStop
			}
			if !r.has(rec.Tick) || (unit != 0 && rec.Unit != unit) || (gen != "" && rec.Generator != gen) {
				return nil
			}
			n++
			return enc.Encode(rec)
		})
		if errors.Is(err, errStop) {
			break
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "world_1", "world id")
	from := fs.Uint64("from_tick", 0, "first tick (inclusive)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "worlds", *worldID, "ticks")
	sum, err := summarizeTicks(dir, tickRange{*from, *to})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ticks:", err)
		os.Exit(1)
	}
	printJSON(sum)
}

type tickSummary struct {
	Ticks      int               `json:"ticks"`
	FirstTick  uint64            `json:"first_tick"`
	LastTick   uint64            `json:"last_tick"`
	LastDigest string            `json:"last_digest"`
	MaxUnits   int               `json:"max_units"`
	Launches   map[string]int    `json:"launches_by_generator"`
	Informs    map[string]int    `json:"informs_by_kind"`
	Restarts   int               `json:"restarts"`
	ByUnit     map[uint64]uint64 `json:"launches_by_unit"`
}

// summarizeTicks aggregates tick entries. A tick number going backwards is
// counted as a server restart.
func summarizeTicks(dir string, r tickRange) (tickSummary, error) {
	sum := tickSummary{Launches: map[string]int{}, Informs: map[string]int{}, ByUnit: map[uint64]uint64{}}
	files, err := persistlog.Files(dir, "ticks")
	if err != nil {
		return sum, err
	}
	for _, f := range files {
		err := persistlog.ReadTicks(f, func(e world.TickLogEntry) error {
			if !r.has(e.Tick) {
				return nil
			}
			if sum.Ticks > 0 && e.Tick <= sum.LastTick {
				sum.Restarts++
			}
			if sum.Ticks == 0 {
				sum.FirstTick = e.Tick
			}
			sum.Ticks++
			sum.LastTick = e.Tick
			sum.LastDigest = e.Digest
			sum.MaxUnits = max(sum.MaxUnits, e.Units)
			for _, l := range e.Launches {
				sum.Launches[l.Generator]++
				sum.ByUnit[l.Unit]++
			}
			for _, in := range e.Informs {
				sum.Informs[in.Kind]++
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
