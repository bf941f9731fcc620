// Command navbake bakes a grid layout into tile files the server can load
// with -tiles.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/nav/navmesh"
)

func main() {
	var (
		layoutPath = flag.String("layout", "./configs/layout.yaml", "grid layout yaml")
		outDir     = flag.String("out", "./data/tiles", "output directory")
		clean      = flag.Bool("clean", false, "remove existing tile files in -out first")
	)
	flag.Parse()

	logger, err := logging.New(logging.Config{Level: "info"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	logger = logger.Named("navbake")

	if *clean {
		old, _ := filepath.Glob(filepath.Join(*outDir, "*"+navmesh.TileFileExt))
		for _, p := range old {
			if err := os.Remove(p); err != nil {
				logger.Fatal("clean", zap.Error(err))
			}
		}
	}
	st, err := bake(*layoutPath, *outDir)
	if err != nil {
		logger.Fatal("bake", zap.Error(err))
	}
	logger.Info("baked",
		zap.String("layout", *layoutPath),
		zap.String("out", *outDir),
		zap.Int("tiles", st.Tiles),
		zap.Int("polys", st.Polys),
		zap.Int("verts", st.Verts))
}

type stats struct {
	Tiles, Polys, Verts int
}

func bake(layoutPath, outDir string) (stats, error) {
	var st stats
	layout, err := navmesh.LoadGridLayout(layoutPath)
	if err != nil {
		return st, err
	}
	tiles, err := navmesh.BuildGrid(layout)
	if err != nil {
		return st, err
	}
	for _, d := range tiles {
		path := filepath.Join(outDir, navmesh.TileFileName(d.X, d.Y))
		if err := navmesh.WriteTileFile(path, d); err != nil {
			return st, fmt.Errorf("tile %d,%d: %w", d.X, d.Y, err)
		}
		st.Tiles++
		st.Polys += len(d.Polys)
		st.Verts += len(d.Verts)
	}
	return st, nil
}
