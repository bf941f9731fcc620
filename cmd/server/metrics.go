package main

import (
	"fmt"
	"io"
	"net/http"

	"navmotion.ai/internal/persistence/indexdb"
	"navmotion.ai/internal/persistence/r2s3"
	"navmotion.ai/internal/sim/world"
)

// metricsHandler serves world metrics in the Prometheus text format.
func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex, mirror *r2s3.Mirror) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, w.ID(), w.Metrics(), idx.Stats(), mirror.Stats())
	}
}

func writeMetrics(out io.Writer, id string, m world.WorldMetrics, is indexdb.Stats, as r2s3.Stats) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s gauge\n", name)
		fmt.Fprintf(out, "%s{world=%q} %v\n", name, id, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(out, "# HELP %s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE %s counter\n", name)
		fmt.Fprintf(out, "%s{world=%q} %d\n", name, id, v)
	}

	gauge("navmotion_world_tick", "Current world tick.", m.Tick)
	gauge("navmotion_world_units", "Units in the world.", m.Units)
	gauge("navmotion_world_grids", "Occupied grid cells.", m.Grids)
	gauge("navmotion_world_observers", "Connected observers.", m.Observers)
	gauge("navmotion_world_loaded_tiles", "Navigation tiles loaded.", m.LoadedTiles)
	gauge("navmotion_world_step_ms", "Duration of the last tick in milliseconds.", m.StepMS)
	gauge("navmotion_world_launches", "Curves launched in the last tick.", m.Launches)
	counter("navmotion_world_launches_total", "Curves launched.", m.LaunchesTotal)
	counter("navmotion_world_informs_total", "Generator completion notices.", m.InformsTotal)
	counter("navmotion_world_handoffs_total", "Units moved between grid cells.", m.HandoffsTotal)

	fmt.Fprintf(out, "# HELP navmotion_world_queue_depth Pending inputs by queue.\n")
	fmt.Fprintf(out, "# TYPE navmotion_world_queue_depth gauge\n")
	fmt.Fprintf(out, "navmotion_world_queue_depth{world=%q,queue=%q} %d\n", id, "orders", m.QueueDepths.Orders)
	fmt.Fprintf(out, "navmotion_world_queue_depth{world=%q,queue=%q} %d\n", id, "despawns", m.QueueDepths.Despawns)
	fmt.Fprintf(out, "navmotion_world_queue_depth{world=%q,queue=%q} %d\n", id, "tiles", m.QueueDepths.Tiles)

	if is.QueueCapacity != 0 {
		gauge("navmotion_index_queue_depth", "Movement index write queue depth.", is.QueueDepth)
		counter("navmotion_index_dropped_ticks_total", "Ticks the movement index dropped.", is.DropTickTotal)
	}

	if as.QueueCapacity != 0 {
		gauge("navmotion_archive_queue_depth", "Archive upload queue depth.", as.QueueDepth)
		counter("navmotion_archive_dropped_total", "Files dropped because the archive queue stayed full.", as.DroppedTotal)
		counter("navmotion_archive_upload_success_total", "Successful archive uploads.", as.UploadSuccessTotal)
		counter("navmotion_archive_upload_fail_total", "Archive uploads that failed after retry.", as.UploadFailTotal)
		gauge("navmotion_archive_last_success_unix", "Unix time of the last successful upload.", as.LastSuccessUnix)
	}
}
