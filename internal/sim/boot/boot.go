// Package boot assembles a world from its on-disk inputs. The server and the
// replay tool share it so both start from identical state.
package boot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/waypoints"
	"navmotion.ai/internal/nav/navmesh"
	"navmotion.ai/internal/sim/tuning"
	"navmotion.ai/internal/sim/world"
)

// Inputs names the files a world is built from. Empty paths are skipped,
// except TuningPath which falls back to <ConfigDir>/tuning.yaml.
type Inputs struct {
	ConfigDir  string
	TuningPath string

	// LayoutPath fixes the tile grid. Tiles come from TilesDir when it holds
	// any, otherwise the layout is baked in memory.
	LayoutPath string
	TilesDir   string

	WaypointsDB   string
	WaypointsYAML string
	ScenarioPath  string
}

// Resolve fills unset paths with the conventional files under ConfigDir,
// keeping only those that exist.
func (in Inputs) Resolve() Inputs {
	if strings.TrimSpace(in.ConfigDir) == "" {
		in.ConfigDir = "./configs"
	}
	def := func(p *string, name string) {
		if strings.TrimSpace(*p) != "" {
			return
		}
		cand := filepath.Join(in.ConfigDir, name)
		if _, err := os.Stat(cand); err == nil {
			*p = cand
		}
	}
	if strings.TrimSpace(in.TuningPath) == "" {
		in.TuningPath = filepath.Join(in.ConfigDir, "tuning.yaml")
	}
	def(&in.LayoutPath, "layout.yaml")
	def(&in.WaypointsYAML, "waypoints.yaml")
	def(&in.ScenarioPath, "scenario.yaml")
	return in
}

// Runtime is a built world plus the resources it holds.
type Runtime struct {
	Tuning tuning.Tuning
	World  *world.World
	Mesh   *navmesh.Mesh
	Store  *waypoints.SQLiteStore
}

func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

// Build loads tuning, the mesh, waypoints and the scenario, in that order.
// A missing tuning file falls back to tuning.Defaults.
func Build(ctx context.Context, in Inputs, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	tune, err := tuning.Load(in.TuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("tuning: %w", err)
		}
		log.Warn("tuning not found, using defaults", zap.String("path", in.TuningPath))
		tune = tuning.Defaults()
	}

	mesh, err := LoadMesh(in.LayoutPath, in.TilesDir, log.Named("navmesh"))
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Tuning: tune, Mesh: mesh}
	if in.WaypointsDB != "" {
		store, err := waypoints.OpenSQLite(in.WaypointsDB, log.Named("waypoints"))
		if err != nil {
			return nil, fmt.Errorf("waypoints: %w", err)
		}
		rt.Store = store
		if in.WaypointsYAML != "" {
			n, err := store.ImportYAML(ctx, in.WaypointsYAML)
			if err != nil {
				_ = rt.Close()
				return nil, fmt.Errorf("waypoints import: %w", err)
			}
			log.Info("waypoints imported", zap.Int("paths", n), zap.String("from", in.WaypointsYAML))
		}
	}

	rt.World = world.New(tune.WorldConfig(), mesh, log.Named("world"))

	if in.ScenarioPath != "" {
		sc, err := world.LoadScenario(in.ScenarioPath)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("scenario: %w", err)
		}
		var store waypoints.Store
		if rt.Store != nil {
			store = rt.Store
		}
		if err := rt.World.ApplyScenario(ctx, sc, store); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("scenario: %w", err)
		}
	}
	return rt, nil
}

// LoadMesh builds the navigation mesh. It returns nil, nil when no layout is
// given: units then move without path planning.
func LoadMesh(layoutPath, tilesDir string, log *zap.Logger) (*navmesh.Mesh, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if layoutPath == "" {
		if tilesDir != "" {
			return nil, fmt.Errorf("tiles dir %s needs a layout for the tile grid", tilesDir)
		}
		return nil, nil
	}
	layout, err := navmesh.LoadGridLayout(layoutPath)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	mesh, err := navmesh.NewMesh(layout.Params(), log)
	if err != nil {
		return nil, err
	}
	if tilesDir != "" {
		n, err := navmesh.LoadDir(mesh, tilesDir)
		if err != nil {
			return nil, fmt.Errorf("tiles: %w", err)
		}
		if n > 0 {
			log.Info("tiles loaded", zap.Int("tiles", n), zap.String("dir", tilesDir))
			return mesh, nil
		}
	}
	tiles, err := navmesh.BuildGrid(layout)
	if err != nil {
		return nil, fmt.Errorf("bake %s: %w", layoutPath, err)
	}
	for _, d := range tiles {
		if _, err := mesh.AddTile(d); err != nil {
			return nil, fmt.Errorf("tile %d,%d: %w", d.X, d.Y, err)
		}
	}
	log.Info("layout baked", zap.Int("tiles", len(tiles)), zap.String("layout", layoutPath))
	return mesh, nil
}
