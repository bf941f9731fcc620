package pathfinder

import "navmotion.ai/internal/nav/geom"

// ShortenPathUntilDist trims the path so it ends about dist away from target.
// Points that lost sight of target stop the trim early.
func (p *PathFinder) ShortenPathUntilDist(target geom.Vec3, dist float64) {
	if p.typ == Blank || len(p.points) < 2 {
		p.log.Debug("shorten called on empty path")
		return
	}
	distSq := dist * dist

	// The first point must lie outside the range, the last one inside.
	if geom.DistSqr(p.points[0], target) < distSq {
		return
	}
	if geom.DistSqr(p.points[len(p.points)-1], target) >= distSq {
		return
	}

	i := len(p.points) - 1
	for {
		if geom.DistSqr(p.points[i-1], target) >= distSq {
			break
		}
		if !p.inLineOfSight(p.points[i-1], target) {
			p.points = p.points[:i+1]
			p.actualEnd = p.points[i]
			return
		}
		i--
		if i == 0 {
			p.points[0] = p.points[1]
			p.points = p.points[:2]
			p.actualEnd = p.points[1]
			return
		}
	}

	// points[i] is too close and points[i-1] is not: pull points[i] back
	// along the segment.
	back := p.points[i-1].Sub(p.points[i])
	if l := back.Len(); l > 0 {
		p.points[i] = p.points[i].Add(back.Mul((dist - geom.Dist(p.points[i], target)) / l))
	}
	p.points = p.points[:i+1]
	p.actualEnd = p.points[i]
}

func (p *PathFinder) inLineOfSight(from, to geom.Vec3) bool {
	if p.height == nil {
		return true
	}
	_, blocked := p.height.HitPosition(from, to)
	return !blocked
}
