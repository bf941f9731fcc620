package world

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/waypoints"
)

// UnitSpec describes a unit to spawn.
type UnitSpec struct {
	ID          uint64             `yaml:"id"`
	Name        string             `yaml:"name"`
	Pos         [3]float64         `yaml:"pos"`
	Orientation float64            `yaml:"orientation"`
	CombatReach float64            `yaml:"combat_reach"`
	CanFly      bool               `yaml:"can_fly"`
	Swimming    bool               `yaml:"swimming"`
	Speeds      map[string]float64 `yaml:"speeds"`
	Behavior    Behavior           `yaml:"behavior"`
}

// Behavior is the initial generator pushed on a spawned unit.
type Behavior struct {
	Kind       string  `yaml:"kind"` // idle, random, waypoint, flight, chase, follow, flee, confused
	Radius     float64 `yaml:"radius"`
	Target     uint64  `yaml:"target"`
	Range      float64 `yaml:"range"`
	Distance   float64 `yaml:"distance"`
	Angle      float64 `yaml:"angle"`
	Path       uint32  `yaml:"path"`
	Repeating  bool    `yaml:"repeating"`
	DurationMs int32   `yaml:"duration_ms"`
}

type Scenario struct {
	Units []UnitSpec `yaml:"units"`
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// ApplyScenario spawns every unit and starts its behavior. Paths are read
// from store; a nil store rejects waypoint and flight behaviors.
func (w *World) ApplyScenario(ctx context.Context, sc Scenario, store waypoints.Store) error {
	units := make([]*Unit, 0, len(sc.Units))
	for _, spec := range sc.Units {
		u, err := w.Spawn(spec)
		if err != nil {
			return err
		}
		units = append(units, u)
	}
	// Behaviors go on after every unit exists so targets resolve.
	for i, spec := range sc.Units {
		if err := w.startBehavior(ctx, units[i], spec.Behavior, store); err != nil {
			return fmt.Errorf("unit %d: %w", units[i].id, err)
		}
	}
	w.log.Info("scenario applied", zap.Int("units", len(units)))
	return nil
}

func (w *World) startBehavior(ctx context.Context, u *Unit, b Behavior, store waypoints.Store) error {
	m := u.Motion()
	switch b.Kind {
	case "", "idle":
	case "random":
		m.MoveRandom(b.Radius)
	case "confused":
		m.MoveConfused()
	case "waypoint", "flight":
		if store == nil {
			return fmt.Errorf("behavior %s: no waypoint store", b.Kind)
		}
		p, err := store.Path(ctx, b.Path)
		if err != nil {
			return err
		}
		if b.Kind == "flight" {
			m.MoveTaxiFlight(p.Nodes, 0)
		} else {
			m.MovePath(p, b.Repeating)
		}
	case "chase":
		if _, ok := w.units[b.Target]; !ok {
			return fmt.Errorf("chase %d: %w", b.Target, ErrUnknownUnit)
		}
		log := w.log
		m.MoveChase(b.Target, b.Range, func(owner motion.Moveable, target uint64) {
			log.Debug("chase reached", zap.Uint64("unit", owner.ID()), zap.Uint64("target", target))
		})
	case "follow":
		if _, ok := w.units[b.Target]; !ok {
			return fmt.Errorf("follow %d: %w", b.Target, ErrUnknownUnit)
		}
		m.MoveFollow(b.Target, b.Distance, b.Angle)
	case "flee":
		m.MoveFleeing(b.Target, b.DurationMs)
	default:
		return fmt.Errorf("unknown behavior %q", b.Kind)
	}
	return nil
}
