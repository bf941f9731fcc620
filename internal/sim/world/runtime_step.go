package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"navmotion.ai/internal/protocol"
)

func (w *World) stepInternal(tiles []TileOp, despawns []uint64, orders []Order) string {
	start := time.Now()
	nowTick := w.tick.Load()

	// Maintenance happens strictly between ticks so workers see a fixed mesh.
	for _, op := range tiles {
		w.applyTile(op)
	}
	for _, id := range despawns {
		w.despawn(id)
	}
	for _, o := range orders {
		w.applyOrder(o)
	}

	w.buildSnapshot()
	grids := w.sortedGrids()
	w.updateGrids(grids, w.cfg.tickMs())
	moved := w.handoff()

	launches, informs, moves := w.collect()
	w.broadcast(nowTick, moves)

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		if err := w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Units:    len(w.units),
			Launches: launches,
			Informs:  informs,
			Digest:   digest,
		}); err != nil {
			w.log.Warn("tick log write failed", zap.Uint64("tick", nowTick), zap.Error(err))
		}
	}

	w.launchesTotal += uint64(len(launches))
	w.informsTotal += uint64(len(informs))
	w.handoffsTotal += uint64(moved)
	w.tick.Add(1)

	loadedTiles := 0
	if w.mesh != nil {
		loadedTiles = w.mesh.TileCount()
	}
	w.metrics.Store(WorldMetrics{
		Tick:          nowTick,
		Units:         len(w.units),
		Grids:         len(grids),
		Observers:     len(w.observers),
		LoadedTiles:   loadedTiles,
		Launches:      len(launches),
		LaunchesTotal: w.launchesTotal,
		InformsTotal:  w.informsTotal,
		HandoffsTotal: w.handoffsTotal,
		QueueDepths: QueueDepths{
			Orders:   len(w.orders),
			Despawns: len(w.despawns),
			Tiles:    len(w.tileOps),
		},
		StepMS: float64(time.Since(start).Microseconds()) / 1000.0,
	})
	return digest
}

func (w *World) applyTile(op TileOp) {
	err := w.tileOp(op)
	if err != nil {
		w.log.Warn("tile op failed", zap.Int32("x", op.X), zap.Int32("y", op.Y), zap.Error(err))
	}
	if op.Resp != nil {
		select {
		case op.Resp <- err:
		default:
		}
	}
}

func (w *World) tileOp(op TileOp) error {
	if w.mesh == nil {
		return ErrNoMesh
	}
	if op.Unload {
		if _, err := w.mesh.RemoveTile(op.X, op.Y); err != nil {
			return err
		}
		w.log.Info("tile unloaded", zap.Int32("x", op.X), zap.Int32("y", op.Y))
		return nil
	}
	if op.Load == nil {
		return nil
	}
	if _, err := w.mesh.AddTile(op.Load); err != nil {
		return err
	}
	w.log.Info("tile loaded", zap.Int32("x", op.Load.X), zap.Int32("y", op.Load.Y), zap.Int("polys", len(op.Load.Polys)))
	return nil
}

func (w *World) applyOrder(o Order) {
	u, ok := w.units[o.Unit]
	if !ok {
		w.log.Debug("order dropped", zap.Uint64("unit", o.Unit), zap.Error(ErrUnknownUnit))
		return
	}
	if o.Do != nil {
		o.Do(u)
	}
}

// buildSnapshot freezes every unit's public state. Workers read targets from
// it and never from other units directly.
func (w *World) buildSnapshot() {
	clear(w.snapshot)
	for id, u := range w.units {
		w.snapshot[id] = u.info()
	}
}

func (w *World) sortedUnits() []*Unit {
	out := make([]*Unit, 0, len(w.units))
	for _, u := range w.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// collect gathers curves launched and informs raised since the last tick.
func (w *World) collect() ([]LaunchEntry, []InformEntry, []protocol.MoveUpdate) {
	var launches []LaunchEntry
	var informs []InformEntry
	var moves []protocol.MoveUpdate
	for _, u := range w.sortedUnits() {
		if len(u.informs) > 0 {
			informs = append(informs, u.informs...)
			u.informs = u.informs[:0]
		}
		id := u.ms.ID()
		if id == u.lastSpline {
			continue
		}
		u.lastSpline = id
		mu := protocol.NewMoveUpdate(u.id, &u.ms)
		moves = append(moves, mu)
		launches = append(launches, LaunchEntry{
			Unit:       u.id,
			SplineID:   id,
			Generator:  u.master.Kind().String(),
			Flags:      mu.Flags,
			DurationMs: mu.DurationMs,
			Points:     mu.Points,
		})
	}
	return launches, informs, moves
}

func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(tmp[:], v)
		h.Write(tmp[:])
	}
	put(nowTick)
	put(uint64(w.cfg.Seed))
	for _, u := range w.sortedUnits() {
		put(u.id)
		for _, c := range u.pos {
			put(math.Float64bits(c))
		}
		put(math.Float64bits(u.orientation))
		put(uint64(u.states))
		put(uint64(u.master.Kind()))
		put(uint64(u.ms.TimePassed()))
		put(uint64(u.ms.Duration()))
	}
	return hex.EncodeToString(h.Sum(nil))
}
