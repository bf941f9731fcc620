// Command replay rebuilds a world from its config inputs and re-steps it
// against a recorded tick log, checking the state digest of every tick.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"navmotion.ai/internal/logging"
	persistlog "navmotion.ai/internal/persistence/log"
	"navmotion.ai/internal/sim/boot"
	"navmotion.ai/internal/sim/world"
)

func main() {
	var (
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst (e.g. data/worlds/world_1/ticks)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		layoutPath = flag.String("layout", "", "grid layout (default: <configs>/layout.yaml)")
		tilesDir   = flag.String("tiles", "", "baked tile dir the server ran with (optional)")
		scenario   = flag.String("scenario", "", "scenario file (default: <configs>/scenario.yaml)")
		wpYAML     = flag.String("waypoints", "", "waypoint yaml (default: <configs>/waypoints.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}
	logger, err := logging.New(logging.Config{Level: "warn"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}

	// Waypoints are imported into a throwaway db; the server's own db may
	// still be open.
	tmp, err := os.MkdirTemp("", "navmotion-replay-")
	if err != nil {
		fmt.Fprintln(os.Stderr, "tempdir:", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tmp)

	in := boot.Inputs{
		ConfigDir:     *configDir,
		TuningPath:    *tuningPath,
		LayoutPath:    *layoutPath,
		TilesDir:      *tilesDir,
		ScenarioPath:  *scenario,
		WaypointsYAML: *wpYAML,
		WaypointsDB:   filepath.Join(tmp, "waypoints.db"),
	}.Resolve()
	rt, err := boot.Build(context.Background(), in, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build world:", err)
		os.Exit(1)
	}
	defer rt.Close()

	files, err := persistlog.Files(*ticksDir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no ticks files found in", *ticksDir)
		os.Exit(1)
	}

	res, err := verify(rt.World, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: world=%s checked=%d ticks launches=%d last_tick=%d\n",
		rt.World.ID(), res.Checked, res.Launches, res.LastTick)
}

type result struct {
	Checked  uint64
	Launches int
	LastTick uint64
}

var errDone = errors.New("done")

// verify steps w once per recorded entry. Digests are compared from
// verifyFrom on; launches are compared per unit and generator.
func verify(w *world.World, files []string, verifyFrom, toTick uint64) (result, error) {
	var res result
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if toTick != 0 && entry.Tick > toTick {
				return errDone
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
			}
			var launches []world.LaunchEntry
			sink := tickCapture(func(e world.TickLogEntry) { launches = e.Launches })
			w.SetTickLogger(sink)
			tick, digest := w.StepOnce()
			res.LastTick = tick
			if tick < verifyFrom {
				return nil
			}
			res.Checked++
			if digest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, digest, entry.Digest)
			}
			if err := sameLaunches(launches, entry.Launches); err != nil {
				return fmt.Errorf("tick %d: %w", tick, err)
			}
			res.Launches += len(launches)
			return nil
		})
		if errors.Is(err, errDone) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

type tickCapture func(world.TickLogEntry)

func (f tickCapture) WriteTick(e world.TickLogEntry) error {
	f(e)
	return nil
}

// sameLaunches ignores spline ids, which come from a process-wide counter.
func sameLaunches(got, want []world.LaunchEntry) error {
	if len(got) != len(want) {
		return fmt.Errorf("launches: got=%d want=%d", len(got), len(want))
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.Unit != w.Unit || g.Generator != w.Generator || g.Flags != w.Flags || g.DurationMs != w.DurationMs || len(g.Points) != len(w.Points) {
			return fmt.Errorf("launch %d: got unit=%d %s want unit=%d %s", i, g.Unit, g.Generator, w.Unit, w.Generator)
		}
	}
	return nil
}
