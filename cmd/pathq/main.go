// Command pathq runs one path query against a baked or in-memory mesh and
// prints the path type and points.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
	"navmotion.ai/internal/nav/pathfinder"
	"navmotion.ai/internal/sim/boot"
	"navmotion.ai/internal/sim/tuning"
)

func main() {
	var (
		layoutPath = flag.String("layout", "./configs/layout.yaml", "grid layout fixing the tile grid")
		tilesDir   = flag.String("tiles", "", "baked tile dir (default: bake the layout in memory)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file for pathfinding options")
		from       = flag.String("from", "", "start x,y,z")
		to         = flag.String("to", "", "destination x,y,z")
		smooth     = flag.Bool("smooth", false, "smoothed path instead of corner points")
		forceDest  = flag.Bool("force_dest", false, "append the exact destination even off mesh")
		limit      = flag.Float64("limit", 0, "path length limit in yards (0 = none)")
		fly        = flag.Bool("fly", false, "plan as a flying mover")
		swim       = flag.Bool("swim", false, "allow water polygons")
		asJSON     = flag.Bool("json", false, "print JSON")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "warn"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}

	start, err := parseVec(*from)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-from:", err)
		os.Exit(2)
	}
	dest, err := parseVec(*to)
	if err != nil {
		fmt.Fprintln(os.Stderr, "-to:", err)
		os.Exit(2)
	}

	opts := pathfinder.DefaultOptions()
	if t, err := tuning.Load(*tuningPath); err == nil {
		opts = t.PathOptions()
	} else if !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "tuning:", err)
		os.Exit(1)
	}

	mesh, err := boot.LoadMesh(*layoutPath, *tilesDir, logger.Named("navmesh"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "mesh:", err)
		os.Exit(1)
	}
	if mesh == nil {
		fmt.Fprintln(os.Stderr, "missing -layout")
		os.Exit(2)
	}

	req := request{
		Start:     start,
		Dest:      dest,
		Straight:  !*smooth,
		ForceDest: *forceDest,
		Limit:     *limit,
		Traits:    pathfinder.Traits{CanWalk: !*fly, CanSwim: *swim, Flying: *fly},
	}
	res := run(mesh, opts, req, logger.Named("pathfinder"))
	if err := res.print(os.Stdout, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "print:", err)
		os.Exit(1)
	}
}

func parseVec(s string) (geom.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Vec3{}, fmt.Errorf("expected x,y,z")
	}
	var v geom.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geom.Vec3{}, err
		}
		v[i] = f
	}
	return v, nil
}

type request struct {
	Start, Dest geom.Vec3
	Straight    bool
	ForceDest   bool
	Limit       float64
	Traits      pathfinder.Traits
}

type source struct {
	pos    geom.Vec3
	traits pathfinder.Traits
}

func (s source) Position() geom.Vec3           { return s.pos }
func (s source) PathTraits() pathfinder.Traits { return s.traits }

type result struct {
	Type      string       `json:"type"`
	Length    float64      `json:"length"`
	ActualEnd [3]float64   `json:"actual_end"`
	Points    [][3]float64 `json:"points"`
	Corridor  int          `json:"corridor_polys"`
}

func run(mesh *navmesh.Mesh, opts pathfinder.Options, req request, log *zap.Logger) result {
	q := navmesh.NewQuery(mesh, 0)
	pf := pathfinder.New(q, navmesh.NewSurface(q), source{pos: req.Start, traits: req.Traits}, opts, log)
	pf.SetUseStraightPath(req.Straight)
	if req.Limit > 0 {
		pf.SetPathLengthLimit(req.Limit)
	}
	pf.Calculate(req.Dest, req.ForceDest)

	res := result{
		Type:      pf.Type().String(),
		Length:    pf.Length(),
		ActualEnd: [3]float64(pf.ActualEndPosition()),
		Corridor:  len(pf.Corridor()),
	}
	for _, p := range pf.Path() {
		res.Points = append(res.Points, [3]float64(p))
	}
	return res
}

func (r result) print(out io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(out, "type=%s length=%.2f points=%d corridor=%d\n", r.Type, r.Length, len(r.Points), r.Corridor)
	for i, p := range r.Points {
		fmt.Fprintf(out, "%3d  %8.2f %8.2f %8.2f\n", i, p[0], p[1], p[2])
	}
	return nil
}
