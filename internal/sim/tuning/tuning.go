package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"navmotion.ai/internal/logging"
	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
	"navmotion.ai/internal/sim/world"
)

//go:embed tuning.schema.json
var schemaJSON []byte

// ErrInvalid wraps schema violations.
var ErrInvalid = errors.New("tuning: invalid")

type Tuning struct {
	World       World          `yaml:"world" json:"world"`
	Pathfinding Pathfinding    `yaml:"pathfinding" json:"pathfinding"`
	Motion      Motion         `yaml:"motion" json:"motion"`
	Spline      Spline         `yaml:"spline" json:"spline"`
	Logging     logging.Config `yaml:"logging" json:"logging"`
}

type World struct {
	ID         string  `yaml:"id" json:"id"`
	TickRateHz int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	Workers    int     `yaml:"workers" json:"workers"`
	GridSize   float64 `yaml:"grid_size" json:"grid_size"`
	Seed       int64   `yaml:"seed" json:"seed"`
}

type Pathfinding struct {
	MaxPathLength        int        `yaml:"max_path_length" json:"max_path_length"`
	MaxPointPathLength   int        `yaml:"max_point_path_length" json:"max_point_path_length"`
	SmoothStepSize       float64    `yaml:"smooth_step_size" json:"smooth_step_size"`
	SmoothPathSlop       float64    `yaml:"smooth_path_slop" json:"smooth_path_slop"`
	FarFromPolyDistance  float64    `yaml:"far_from_poly_distance" json:"far_from_poly_distance"`
	SmoothShortMoveRange float64    `yaml:"smooth_short_move_range" json:"smooth_short_move_range"`
	Extents              [3]float64 `yaml:"extents" json:"extents"`
}

type Motion struct {
	ChaseRecheckMs      int32    `yaml:"chase_recheck_ms" json:"chase_recheck_ms"`
	FollowRecheckMs     int32    `yaml:"follow_recheck_ms" json:"follow_recheck_ms"`
	MinRecalcDistance   float64  `yaml:"min_recalc_distance" json:"min_recalc_distance"`
	RecalcReachFactor   float64  `yaml:"recalc_reach_factor" json:"recalc_reach_factor"`
	TargetMoveSlack     float64  `yaml:"target_move_slack" json:"target_move_slack"`
	NoPathRetryMs       int32    `yaml:"no_path_retry_ms" json:"no_path_retry_ms"`
	NominalMeleeRange   float64  `yaml:"nominal_melee_range" json:"nominal_melee_range"`
	FleeMinQuiet        float64  `yaml:"flee_min_quiet" json:"flee_min_quiet"`
	FleeMaxQuiet        float64  `yaml:"flee_max_quiet" json:"flee_max_quiet"`
	FleeRetryMs         int32    `yaml:"flee_retry_ms" json:"flee_retry_ms"`
	FleeCooldownMs      [2]int32 `yaml:"flee_cooldown_ms" json:"flee_cooldown_ms"`
	ConfusedHop         float64  `yaml:"confused_hop" json:"confused_hop"`
	RandomMaxPathFactor float64  `yaml:"random_max_path_factor" json:"random_max_path_factor"`
	RandomShortPauseMs  [2]int32 `yaml:"random_short_pause_ms" json:"random_short_pause_ms"`
	RandomLongPauseMs   [2]int32 `yaml:"random_long_pause_ms" json:"random_long_pause_ms"`
	RandomSteps         [2]int32 `yaml:"random_steps" json:"random_steps"`
}

// Spline holds the default unit speeds in yards per second.
type Spline struct {
	Walk       float64 `yaml:"walk" json:"walk"`
	Run        float64 `yaml:"run" json:"run"`
	RunBack    float64 `yaml:"run_back" json:"run_back"`
	Swim       float64 `yaml:"swim" json:"swim"`
	SwimBack   float64 `yaml:"swim_back" json:"swim_back"`
	Flight     float64 `yaml:"flight" json:"flight"`
	FlightBack float64 `yaml:"flight_back" json:"flight_back"`
}

func Defaults() Tuning {
	mc := motion.DefaultConfig()
	po := pathfinder.DefaultOptions()
	return Tuning{
		World: World{ID: "world_1", TickRateHz: 10, Workers: 4, GridSize: 64, Seed: 1337},
		Pathfinding: Pathfinding{
			MaxPathLength:        po.MaxPathLength,
			MaxPointPathLength:   po.MaxPointPathLength,
			SmoothStepSize:       po.SmoothStepSize,
			SmoothPathSlop:       po.SmoothPathSlop,
			FarFromPolyDistance:  po.FarFromPolyDistance,
			SmoothShortMoveRange: po.SmoothShortMoveRange,
			Extents:              [3]float64{po.Extents[0], po.Extents[1], po.Extents[2]},
		},
		Motion: Motion{
			ChaseRecheckMs:      mc.ChaseRecheckMs,
			FollowRecheckMs:     mc.FollowRecheckMs,
			MinRecalcDistance:   mc.MinRecalcDistance,
			RecalcReachFactor:   mc.RecalcReachFactor,
			TargetMoveSlack:     mc.TargetMoveSlack,
			NoPathRetryMs:       mc.NoPathRetryMs,
			NominalMeleeRange:   mc.NominalMeleeRange,
			FleeMinQuiet:        mc.FleeMinQuiet,
			FleeMaxQuiet:        mc.FleeMaxQuiet,
			FleeRetryMs:         mc.FleeRetryMs,
			FleeCooldownMs:      [2]int32{mc.FleeCooldownMinMs, mc.FleeCooldownMaxMs},
			ConfusedHop:         mc.ConfusedHop,
			RandomMaxPathFactor: mc.RandomMaxPathFactor,
			RandomShortPauseMs:  mc.RandomShortPauseMs,
			RandomLongPauseMs:   mc.RandomLongPauseMs,
			RandomSteps:         mc.RandomSteps,
		},
		Spline: Spline{
			Walk: 2.5, Run: 7, RunBack: 4.5,
			Swim: 4.722222, SwimBack: 2.5,
			Flight: 7, FlightBack: 4.5,
		},
		Logging: logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads a tuning file, validates it against the embedded schema and
// decodes it over Defaults, so omitted keys keep their default values.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc != nil {
		if err := validate(doc); err != nil {
			return t, err
		}
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func validate(doc any) error {
	// Round-trip through JSON so the validator sees JSON value types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	s, err := compileSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("tuning.schema.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile("tuning.schema.json")
}

func (t Tuning) MotionConfig() motion.Config {
	c := motion.DefaultConfig()
	m := t.Motion
	c.ChaseRecheckMs = m.ChaseRecheckMs
	c.FollowRecheckMs = m.FollowRecheckMs
	c.MinRecalcDistance = m.MinRecalcDistance
	c.RecalcReachFactor = m.RecalcReachFactor
	c.TargetMoveSlack = m.TargetMoveSlack
	c.NoPathRetryMs = m.NoPathRetryMs
	c.NominalMeleeRange = m.NominalMeleeRange
	c.FleeMinQuiet = m.FleeMinQuiet
	c.FleeMaxQuiet = m.FleeMaxQuiet
	c.FleeRetryMs = m.FleeRetryMs
	c.FleeCooldownMinMs = m.FleeCooldownMs[0]
	c.FleeCooldownMaxMs = m.FleeCooldownMs[1]
	c.ConfusedHop = m.ConfusedHop
	c.RandomMaxPathFactor = m.RandomMaxPathFactor
	c.RandomShortPauseMs = m.RandomShortPauseMs
	c.RandomLongPauseMs = m.RandomLongPauseMs
	c.RandomSteps = m.RandomSteps
	return c
}

func (t Tuning) PathOptions() pathfinder.Options {
	o := pathfinder.DefaultOptions()
	p := t.Pathfinding
	o.MaxPathLength = p.MaxPathLength
	o.MaxPointPathLength = p.MaxPointPathLength
	o.SmoothStepSize = p.SmoothStepSize
	o.SmoothPathSlop = p.SmoothPathSlop
	o.FarFromPolyDistance = p.FarFromPolyDistance
	o.SmoothShortMoveRange = p.SmoothShortMoveRange
	o.Extents = geom.V(p.Extents[0], p.Extents[1], p.Extents[2])
	return o
}

func (t Tuning) Speeds() world.Speeds {
	var s world.Speeds
	s[spline.SpeedWalk] = t.Spline.Walk
	s[spline.SpeedRun] = t.Spline.Run
	s[spline.SpeedRunBack] = t.Spline.RunBack
	s[spline.SpeedSwim] = t.Spline.Swim
	s[spline.SpeedSwimBack] = t.Spline.SwimBack
	s[spline.SpeedFlight] = t.Spline.Flight
	s[spline.SpeedFlightBack] = t.Spline.FlightBack
	return s
}

// WorldConfig assembles the simulation config from every section.
func (t Tuning) WorldConfig() world.Config {
	return world.Config{
		ID:         t.World.ID,
		TickRateHz: t.World.TickRateHz,
		Workers:    t.World.Workers,
		GridSize:   t.World.GridSize,
		Seed:       t.World.Seed,
		Motion:     t.MotionConfig(),
		Path:       t.PathOptions(),
		Speeds:     t.Speeds(),
	}
}
