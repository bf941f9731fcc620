package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
	"navmotion.ai/internal/protocol"
)

var (
	ErrUnitExists  = errors.New("world: unit exists")
	ErrUnknownUnit = errors.New("world: unknown unit")
	ErrNoMesh      = errors.New("world: no navmesh")
)

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry is the telemetry record of one tick.
type TickLogEntry struct {
	Tick     uint64        `json:"tick"`
	Units    int           `json:"units"`
	Launches []LaunchEntry `json:"launches,omitempty"`
	Informs  []InformEntry `json:"informs,omitempty"`
	Digest   string        `json:"digest"`
}

// LaunchEntry records a curve installed on a unit during the tick.
type LaunchEntry struct {
	Unit       uint64       `json:"unit"`
	SplineID   uint32       `json:"spline_id"`
	Generator  string       `json:"generator"`
	Flags      uint32       `json:"flags"`
	DurationMs int32        `json:"duration_ms"`
	Points     [][3]float64 `json:"points"`
}

type InformEntry struct {
	Unit uint64 `json:"unit"`
	Kind string `json:"kind"`
	ID   uint32 `json:"id"`
}

// Order runs against one unit between ticks, typically to push a behavior
// through u.Motion().
type Order struct {
	Unit uint64
	Do   func(u *Unit)
}

// TileOp loads or unloads one navmesh tile between ticks.
type TileOp struct {
	Load   *navmesh.TileData
	Unload bool
	X, Y   int32
	Resp   chan error
}

type ObserverJoinRequest struct {
	Format protocol.Format
	// Units restricts the stream to these units; empty means all.
	Units []uint64
	Out   chan []byte
	Resp  chan ObserverJoinResponse
}

type ObserverJoinResponse struct {
	ObserverID string
	Welcome    protocol.WelcomeMsg
}

type observer struct {
	id     string
	format protocol.Format
	units  map[uint64]bool
	out    chan []byte
}

func (o *observer) wants(unit uint64) bool {
	return len(o.units) == 0 || o.units[unit]
}

type World struct {
	cfg Config
	log *zap.Logger

	mesh    *navmesh.Mesh
	query   *navmesh.Query
	surface *navmesh.Surface

	units    map[uint64]*Unit
	grids    map[cellKey]*grid
	nextUnit uint64
	snapshot map[uint64]motion.TargetInfo

	tick atomic.Uint64

	orders        chan Order
	despawns      chan uint64
	tileOps       chan TileOp
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stop          chan struct{}
	stopOnce      sync.Once

	observers    map[string]*observer
	nextObserver uint64

	tickLogger TickLogger

	launchesTotal uint64
	informsTotal  uint64
	handoffsTotal uint64
	metrics       atomic.Value
}

// New builds a world over mesh. A nil mesh runs without navigation: movers
// fall back to straight lines and tile ops fail with ErrNoMesh.
func New(cfg Config, mesh *navmesh.Mesh, log *zap.Logger) *World {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	w := &World{
		cfg:           cfg,
		log:           log.With(zap.String("world", cfg.ID)),
		mesh:          mesh,
		units:         map[uint64]*Unit{},
		grids:         map[cellKey]*grid{},
		snapshot:      map[uint64]motion.TargetInfo{},
		orders:        make(chan Order, 1024),
		despawns:      make(chan uint64, 256),
		tileOps:       make(chan TileOp, 64),
		observerJoin:  make(chan ObserverJoinRequest, 64),
		observerLeave: make(chan string, 64),
		stop:          make(chan struct{}),
		observers:     map[string]*observer{},
	}
	if mesh != nil {
		w.query = navmesh.NewQuery(mesh, 0)
		w.surface = navmesh.NewSurface(w.query)
	}
	w.metrics.Store(WorldMetrics{})
	return w
}

func (w *World) ID() string      { return w.cfg.ID }
func (w *World) TickRateHz() int { return w.cfg.TickRateHz }
func (w *World) CurrentTick() uint64 {
	return w.tick.Load()
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }

// Unit returns a unit by id. Like Spawn it must not race with Run.
func (w *World) Unit(id uint64) (*Unit, bool) {
	u, ok := w.units[id]
	return u, ok
}

func (w *World) UnitCount() int { return len(w.units) }

// Spawn places a new idle unit. It is meant for setup before Run starts and
// for tests driving StepOnce; running worlds take Orders.
func (w *World) Spawn(spec UnitSpec) (*Unit, error) {
	id := spec.ID
	if id == 0 {
		id = w.nextUnit + 1
	}
	if _, ok := w.units[id]; ok {
		return nil, fmt.Errorf("unit %d: %w", id, ErrUnitExists)
	}
	speeds := w.cfg.Speeds
	for name, v := range spec.Speeds {
		t, ok := speedTypes[name]
		if !ok {
			return nil, fmt.Errorf("unit %d: unknown speed %q", id, name)
		}
		speeds[t] = v
	}
	pos := geom.V(spec.Pos[0], spec.Pos[1], spec.Pos[2])
	u := &Unit{
		id:          id,
		name:        spec.Name,
		pos:         pos,
		orientation: geom.NormalizeAngle(spec.Orientation),
		combatReach: spec.CombatReach,
		canFly:      spec.CanFly,
		swimming:    spec.Swimming,
		speeds:      speeds,
		home:        spline.Location{Pos: pos, Orientation: spec.Orientation},
		rng:         rand.New(rand.NewSource(w.cfg.Seed ^ int64(id*0x9e3779b97f4a7c15>>1))),
		w:           w,
	}
	u.master = motion.NewMaster(u, w.cfg.Motion, w.log)
	if id > w.nextUnit {
		w.nextUnit = id
	}
	w.units[id] = u
	w.placeUnit(u)
	w.log.Debug("unit spawned", zap.Uint64("unit", id), zap.String("name", spec.Name))
	return u, nil
}

func (w *World) despawn(id uint64) {
	u, ok := w.units[id]
	if !ok {
		return
	}
	u.master.Clear()
	w.unplaceUnit(u)
	delete(w.units, id)
	w.log.Debug("unit despawned", zap.Uint64("unit", id))
}

// Submit queues an order for the next tick. It reports false when the queue
// is full.
func (w *World) Submit(o Order) bool {
	select {
	case w.orders <- o:
		return true
	default:
		return false
	}
}

// Despawn removes a unit at the start of the next tick.
func (w *World) Despawn(id uint64) bool {
	select {
	case w.despawns <- id:
		return true
	default:
		return false
	}
}

// ApplyTile queues a tile op. The result arrives on op.Resp when set.
func (w *World) ApplyTile(op TileOp) bool {
	select {
	case w.tileOps <- op:
		return true
	default:
		return false
	}
}

// JoinObserver queues an observer. It reports false when the queue is full.
func (w *World) JoinObserver(req ObserverJoinRequest) bool {
	select {
	case w.observerJoin <- req:
		return true
	default:
		return false
	}
}

func (w *World) LeaveObserver(id string) {
	select {
	case w.observerLeave <- id:
	default:
	}
}
