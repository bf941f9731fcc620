package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingOrders []Order
	var pendingDespawns []uint64
	var pendingTiles []TileOp

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case o := <-w.orders:
			pendingOrders = append(pendingOrders, o)
		case id := <-w.despawns:
			pendingDespawns = append(pendingDespawns, id)
		case op := <-w.tileOps:
			pendingTiles = append(pendingTiles, op)
		case <-ticker.C:
			w.stepInternal(pendingTiles, pendingDespawns, pendingOrders)
			pendingOrders = pendingOrders[:0]
			pendingDespawns = pendingDespawns[:0]
			pendingTiles = pendingTiles[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// StepOnce advances the world by one tick with the given orders, using the
// same ordering as Run. It is meant for tests and offline replays.
func (w *World) StepOnce(orders ...Order) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.stepInternal(nil, nil, orders)
	return tick, digest
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
