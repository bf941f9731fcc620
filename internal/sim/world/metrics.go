package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Units       int `json:"units"`
	Grids       int `json:"grids"`
	Observers   int `json:"observers"`
	LoadedTiles int `json:"loaded_tiles"`

	Launches      int    `json:"launches"`
	LaunchesTotal uint64 `json:"launches_total"`
	InformsTotal  uint64 `json:"informs_total"`
	HandoffsTotal uint64 `json:"handoffs_total"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Orders   int `json:"orders"`
	Despawns int `json:"despawns"`
	Tiles    int `json:"tiles"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	if v := w.metrics.Load(); v != nil {
		if m, ok := v.(WorldMetrics); ok {
			return m
		}
	}
	return WorldMetrics{}
}
