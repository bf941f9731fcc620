package world

import (
	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/pathfinder"
)

// Speeds holds the default unit speeds indexed by spline.SpeedType.
type Speeds [spline.SpeedFlightBack + 1]float64

var speedTypes = map[string]spline.SpeedType{
	"walk":        spline.SpeedWalk,
	"run":         spline.SpeedRun,
	"run_back":    spline.SpeedRunBack,
	"swim":        spline.SpeedSwim,
	"swim_back":   spline.SpeedSwimBack,
	"flight":      spline.SpeedFlight,
	"flight_back": spline.SpeedFlightBack,
}

// ParseSpeedType maps a config name such as "run_back" to its speed type.
func ParseSpeedType(name string) (spline.SpeedType, bool) {
	t, ok := speedTypes[name]
	return t, ok
}

func DefaultSpeeds() Speeds {
	var s Speeds
	s[spline.SpeedWalk] = 2.5
	s[spline.SpeedRun] = 7
	s[spline.SpeedRunBack] = 4.5
	s[spline.SpeedSwim] = 4.722222
	s[spline.SpeedSwimBack] = 2.5
	s[spline.SpeedFlight] = 7
	s[spline.SpeedFlightBack] = 4.5
	return s
}

type Config struct {
	ID         string
	TickRateHz int
	// Workers is the size of the pool that updates grid cells in parallel.
	Workers int
	// GridSize is the edge of one scheduling cell in world units.
	GridSize float64
	Seed     int64

	Motion motion.Config
	Path   pathfinder.Options
	Speeds Speeds
}

func (c *Config) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 10
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.GridSize <= 0 {
		c.GridSize = 64
	}
	if c.Motion == (motion.Config{}) {
		c.Motion = motion.DefaultConfig()
	}
	if c.Path == (pathfinder.Options{}) {
		c.Path = pathfinder.DefaultOptions()
	}
	if c.Speeds == (Speeds{}) {
		c.Speeds = DefaultSpeeds()
	}
}

// tickMs is the simulated time advanced per tick.
func (c *Config) tickMs() int32 {
	return int32(1000 / c.TickRateHz)
}
