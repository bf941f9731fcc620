package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"navmotion.ai/internal/movement/waypoints"
	"navmotion.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	unit := fs.Uint64("unit", 0, "unit id (launches, informs)")
	tick := fs.Uint64("tick", 0, "tick (digest)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "launches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index.db")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	ctx := context.Background()

	switch q {
	case "launches":
		if *unit == 0 {
			fmt.Fprintln(os.Stderr, "missing -unit")
			os.Exit(2)
		}
		idx, err := indexdb.OpenSQLite(path, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer idx.Close()
		rows, err := idx.UnitLaunches(ctx, *unit, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range rows {
			printJSON(r)
		}

	case "digest":
		idx, err := indexdb.OpenSQLite(path, nil)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer idx.Close()
		d, err := idx.TickDigest(ctx, *tick)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		printJSON(map[string]any{"tick": *tick, "digest": d})

	case "informs":
		db, err := sql.Open("sqlite", path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open:", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := printInforms(ctx, db, *unit, *limit); err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-unit U] [-tick T] launches|digest|informs")
		os.Exit(2)
	}
}

type informRow struct {
	Tick uint64 `json:"tick"`
	Unit uint64 `json:"unit"`
	Kind string `json:"kind"`
	ID   uint32 `json:"id"`
}

func queryInforms(ctx context.Context, db *sql.DB, unit uint64, limit int) ([]informRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT tick,unit,kind,inform_id FROM informs ORDER BY tick DESC, seq DESC LIMIT ?`
	args := []any{limit}
	if unit != 0 {
		q = `SELECT tick,unit,kind,inform_id FROM informs WHERE unit=? ORDER BY tick DESC, seq DESC LIMIT ?`
		args = []any{int64(unit), limit}
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []informRow
	for rows.Next() {
		var r informRow
		var tick, u int64
		if err := rows.Scan(&tick, &u, &r.Kind, &r.ID); err != nil {
			return nil, err
		}
		r.Tick, r.Unit = uint64(tick), uint64(u)
		out = append(out, r)
	}
	return out, rows.Err()
}

func printInforms(ctx context.Context, db *sql.DB, unit uint64, limit int) error {
	rows, err := queryInforms(ctx, db, unit, limit)
	if err != nil {
		return err
	}
	for _, r := range rows {
		printJSON(r)
	}
	return nil
}

func waypointsCmd(args []string) {
	fs := flag.NewFlagSet("waypoints", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "waypoint db (default: <data>/waypoints.db)")
	importPath := fs.String("import", "", "yaml file to import before listing")
	id := fs.Uint("path", 0, "print one path (0 = list ids)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "waypoints.db")
	}
	store, err := waypoints.OpenSQLite(path, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer store.Close()
	ctx := context.Background()

	if *importPath != "" {
		n, err := store.ImportYAML(ctx, *importPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "imported %d paths\n", n)
	}
	if *id != 0 {
		p, err := store.Path(ctx, uint32(*id))
		if err != nil {
			fmt.Fprintln(os.Stderr, "path:", err)
			os.Exit(1)
		}
		printJSON(p)
		return
	}
	ids, err := store.IDs(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	printJSON(ids)
}
