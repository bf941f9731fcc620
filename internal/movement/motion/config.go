package motion

import "math"

// Config holds the generator tuning. Times are in milliseconds, distances in
// yards.
type Config struct {
	ChaseRecheckMs    int32
	FollowRecheckMs   int32
	MinRecalcDistance float64
	RecalcReachFactor float64
	TargetMoveSlack   float64
	NoPathRetryMs     int32
	NominalMeleeRange float64
	ContactDistance   float64
	FollowTolerance   float64
	FollowAngleBand   float64

	FleeMinQuiet      float64
	FleeMaxQuiet      float64
	FleeRetryMs       int32
	FleeCooldownMinMs int32
	FleeCooldownMaxMs int32
	FleePathLimit     float64

	ConfusedHop     float64
	WanderRetryMs   int32
	LOSRetryMs      int32
	WanderPathLimit float64

	RandomMaxPathFactor float64
	RandomShortPauseMs  [2]int32
	RandomLongPauseMs   [2]int32
	RandomSteps         [2]int32
}

func DefaultConfig() Config {
	return Config{
		ChaseRecheckMs:    100,
		FollowRecheckMs:   250,
		MinRecalcDistance: 0.5,
		RecalcReachFactor: 0.2,
		TargetMoveSlack:   0.5,
		NoPathRetryMs:     500,
		NominalMeleeRange: 5,
		ContactDistance:   0.5,
		FollowTolerance:   1,
		FollowAngleBand:   math.Pi / 4,

		FleeMinQuiet:      28,
		FleeMaxQuiet:      43,
		FleeRetryMs:       50,
		FleeCooldownMinMs: 800,
		FleeCooldownMaxMs: 1500,
		FleePathLimit:     30,

		ConfusedHop:     2,
		WanderRetryMs:   100,
		LOSRetryMs:      200,
		WanderPathLimit: 30,

		RandomMaxPathFactor: 2,
		RandomShortPauseMs:  [2]int32{1000, 2000},
		RandomLongPauseMs:   [2]int32{5000, 10000},
		RandomSteps:         [2]int32{2, 10},
	}
}

func (c *Config) normalize() {
	d := DefaultConfig()
	setInt := func(v *int32, def int32) {
		if *v <= 0 {
			*v = def
		}
	}
	setF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setInt(&c.ChaseRecheckMs, d.ChaseRecheckMs)
	setInt(&c.FollowRecheckMs, d.FollowRecheckMs)
	setF(&c.MinRecalcDistance, d.MinRecalcDistance)
	setF(&c.RecalcReachFactor, d.RecalcReachFactor)
	if c.TargetMoveSlack < 0 {
		c.TargetMoveSlack = 0
	}
	setInt(&c.NoPathRetryMs, d.NoPathRetryMs)
	setF(&c.NominalMeleeRange, d.NominalMeleeRange)
	setF(&c.ContactDistance, d.ContactDistance)
	setF(&c.FollowTolerance, d.FollowTolerance)
	setF(&c.FollowAngleBand, d.FollowAngleBand)
	setF(&c.FleeMinQuiet, d.FleeMinQuiet)
	if c.FleeMaxQuiet <= c.FleeMinQuiet {
		c.FleeMaxQuiet = c.FleeMinQuiet + (d.FleeMaxQuiet - d.FleeMinQuiet)
	}
	setInt(&c.FleeRetryMs, d.FleeRetryMs)
	setInt(&c.FleeCooldownMinMs, d.FleeCooldownMinMs)
	if c.FleeCooldownMaxMs < c.FleeCooldownMinMs {
		c.FleeCooldownMaxMs = c.FleeCooldownMinMs
	}
	setF(&c.FleePathLimit, d.FleePathLimit)
	setF(&c.ConfusedHop, d.ConfusedHop)
	setInt(&c.WanderRetryMs, d.WanderRetryMs)
	setInt(&c.LOSRetryMs, d.LOSRetryMs)
	setF(&c.WanderPathLimit, d.WanderPathLimit)
	setF(&c.RandomMaxPathFactor, d.RandomMaxPathFactor)
	for _, p := range []struct{ v, def *[2]int32 }{
		{&c.RandomShortPauseMs, &d.RandomShortPauseMs},
		{&c.RandomLongPauseMs, &d.RandomLongPauseMs},
		{&c.RandomSteps, &d.RandomSteps},
	} {
		if p.v[0] <= 0 || p.v[1] < p.v[0] {
			*p.v = *p.def
		}
	}
}

// meleeReach is the distance at which a chaser counts as in contact.
func (c *Config) meleeReach(ownerReach, targetReach float64) float64 {
	return math.Max(c.NominalMeleeRange, ownerReach+targetReach+4.0/3.0)
}

// recalcThreshold is how far a target may drift before a tracking
// generator replans.
func (c *Config) recalcThreshold(reach float64) float64 {
	return math.Max(c.MinRecalcDistance, reach*c.RecalcReachFactor) + c.TargetMoveSlack
}
