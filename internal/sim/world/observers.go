package world

import (
	"fmt"

	"go.uber.org/zap"

	"navmotion.ai/internal/protocol"
)

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	w.nextObserver++
	o := &observer{
		id:     fmt.Sprintf("O%06d", w.nextObserver),
		format: req.Format,
		out:    req.Out,
	}
	if o.format == "" {
		o.format = protocol.FormatJSON
	}
	if len(req.Units) > 0 {
		o.units = make(map[uint64]bool, len(req.Units))
		for _, id := range req.Units {
			o.units[id] = true
		}
	}
	w.observers[o.id] = o
	tick := w.tick.Load()
	if req.Resp != nil {
		req.Resp <- ObserverJoinResponse{
			ObserverID: o.id,
			Welcome: protocol.WelcomeMsg{
				Type:            protocol.TypeWelcome,
				ProtocolVersion: protocol.Version,
				WorldID:         w.cfg.ID,
				Tick:            tick,
				TickRateHz:      w.cfg.TickRateHz,
				Format:          o.format,
				Units:           len(w.units),
			},
		}
	}
	w.log.Info("observer joined", zap.String("observer", o.id), zap.String("format", string(o.format)))

	// Catch the observer up with every curve currently in flight.
	var moves []protocol.MoveUpdate
	for _, u := range w.sortedUnits() {
		if u.ms.Finalized() || !o.wants(u.id) {
			continue
		}
		moves = append(moves, protocol.NewMoveUpdate(u.id, &u.ms))
	}
	if len(moves) > 0 {
		w.send(o, protocol.NewMoveBatch(w.cfg.ID, tick, moves))
	}
}

func (w *World) handleObserverLeave(id string) {
	if _, ok := w.observers[id]; !ok {
		return
	}
	delete(w.observers, id)
	w.log.Info("observer left", zap.String("observer", id))
}

func (w *World) send(o *observer, b protocol.MoveBatch) {
	data, err := b.Encode(o.format)
	if err != nil {
		w.log.Warn("encode moves", zap.String("observer", o.id), zap.Error(err))
		return
	}
	sendLatest(o.out, data)
}

// broadcast fans the tick's launches out to observers. Unfiltered observers
// share one encoding per format.
func (w *World) broadcast(tick uint64, moves []protocol.MoveUpdate) {
	if len(moves) == 0 || len(w.observers) == 0 {
		return
	}
	all := protocol.NewMoveBatch(w.cfg.ID, tick, moves)
	shared := map[protocol.Format][]byte{}
	for _, o := range w.observers {
		if len(o.units) > 0 {
			var mine []protocol.MoveUpdate
			for _, m := range moves {
				if o.wants(m.Unit) {
					mine = append(mine, m)
				}
			}
			if len(mine) > 0 {
				w.send(o, protocol.NewMoveBatch(w.cfg.ID, tick, mine))
			}
			continue
		}
		data, ok := shared[o.format]
		if !ok {
			var err error
			data, err = all.Encode(o.format)
			if err != nil {
				w.log.Warn("encode moves", zap.String("format", string(o.format)), zap.Error(err))
				continue
			}
			shared[o.format] = data
		}
		sendLatest(o.out, data)
	}
}
