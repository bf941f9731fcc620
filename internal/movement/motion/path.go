package motion

import (
	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/movement/waypoints"
	"navmotion.ai/internal/nav/geom"
)

// Waypoint walks a node list one node at a time, waiting each node's delay
// and informing the owner on arrival.
type Waypoint struct {
	base
	Path waypoints.Path

	current  int
	nextMove int32
	moving   bool
	done     bool
}

func (g *Waypoint) Kind() Kind { return KindWaypoint }

// CurrentNode is the index of the node being walked to or waited at.
func (g *Waypoint) CurrentNode() int { return g.current }

func (g *Waypoint) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	g.current = 0
	g.nextMove = 1
	g.moving = false
	g.done = len(g.Path.Nodes) == 0
	owner.AddUnitState(StateRoaming)
}

func (g *Waypoint) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	owner.AddUnitState(StateRoaming)
	g.moving = false
	if !g.has(flagPaused) {
		g.nextMove = 1
	}
}

func (g *Waypoint) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.moving = false
	owner.ClearUnitState(StateRoamingMove)
}

func (g *Waypoint) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	if active {
		owner.ClearUnitState(StateRoaming | StateRoamingMove)
	}
}

// Pause stops the walk. A positive duration resumes on its own; zero waits
// for Resume.
func (g *Waypoint) Pause(owner Moveable, durationMs int32) {
	if durationMs > 0 {
		g.clear(flagPaused)
		g.add(flagTimedPaused)
		g.nextMove = durationMs
	} else {
		g.add(flagPaused)
		g.clear(flagTimedPaused)
	}
	g.moving = false
	owner.ClearUnitState(StateRoamingMove)
	stopMoving(owner)
}

// Resume continues towards the current node, after overrideMs when positive.
func (g *Waypoint) Resume(overrideMs int32) {
	g.clear(flagPaused | flagTimedPaused)
	if overrideMs > 0 {
		g.nextMove = overrideMs
	}
	if g.nextMove <= 0 {
		g.nextMove = 1
	}
}

func (g *Waypoint) Paused() bool { return g.has(flagPaused | flagTimedPaused) }

func (g *Waypoint) Update(owner Moveable, diff int32) bool {
	if g.done {
		return false
	}
	if g.has(flagPaused) {
		return true
	}
	if owner.HasUnitState(StateNotMove) {
		if g.moving {
			g.moving = false
			stopMoving(owner)
		}
		g.nextMove = 1
		return true
	}
	if g.moving {
		if !owner.MoveSpline().Finalized() {
			if g.has(flagSpeedUpdatePending) {
				g.clear(flagSpeedUpdatePending)
				g.startMove(owner)
			}
			return true
		}
		g.arrived(owner)
		return !g.done
	}
	g.nextMove -= diff
	if g.nextMove <= 0 {
		g.clear(flagTimedPaused)
		g.startMove(owner)
	}
	return true
}

func (g *Waypoint) arrived(owner Moveable) {
	g.moving = false
	owner.ClearUnitState(StateRoamingMove)
	node := g.Path.Nodes[g.current]
	if node.Orientation != nil {
		spline.FaceTo(owner, *node.Orientation, true)
	}
	inform(owner, KindWaypoint, node.ID)
	g.nextMove = max(node.DelayMs, 1)
	if g.current == len(g.Path.Nodes)-1 {
		if !g.Path.Repeating {
			g.done = true
			return
		}
		g.current = 0
		return
	}
	g.current++
}

func (g *Waypoint) startMove(owner Moveable) {
	node := g.Path.Nodes[g.current]
	in := spline.NewInit(owner)
	switch node.MoveType {
	case waypoints.MoveFly:
		in.MoveTo(node.Pos(), false, false, 0)
		in.SetFly()
	case waypoints.MoveRun:
		in.MoveTo(node.Pos(), true, false, 0)
		in.SetWalk(false)
	default:
		in.MoveTo(node.Pos(), true, false, 0)
		in.SetWalk(true)
	}
	if in.Launch() == 0 {
		// Already there or unreachable as a curve: count it as reached.
		stopMoving(owner)
	}
	owner.AddUnitState(StateRoamingMove)
	g.moving = true
}

// Flight flies a node list as one smooth curve, informing per node passed.
type Flight struct {
	base
	Nodes []waypoints.Node
	// Start is the first node to fly to.
	Start int

	current int
}

func (g *Flight) Kind() Kind { return KindFlight }

func (g *Flight) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.current = g.Start
	owner.AddUnitState(StateInFlight)
	g.launch(owner)
}

func (g *Flight) launch(owner Moveable) {
	pos := owner.Position()
	for g.current < len(g.Nodes) && geom.Dist(pos, g.Nodes[g.current].Pos()) < 0.1 {
		inform(owner, KindFlight, g.Nodes[g.current].ID)
		g.current++
	}
	if g.current >= len(g.Nodes) {
		return
	}
	points := make([]geom.Vec3, 0, len(g.Nodes)-g.current+1)
	points = append(points, pos)
	for _, n := range g.Nodes[g.current:] {
		points = append(points, n.Pos())
	}
	in := spline.NewInit(owner)
	in.MoveByPath(points, g.current-1)
	in.SetFly()
	in.SetSmooth()
	if in.Launch() == 0 {
		_, log := g.env()
		log.Debug("flight curve rejected")
		g.current = len(g.Nodes)
	}
}

func (g *Flight) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	owner.AddUnitState(StateInFlight)
	g.launch(owner)
}

func (g *Flight) Interrupt(Moveable) { g.add(flagInterrupted) }

func (g *Flight) Update(owner Moveable, _ int32) bool {
	if g.current >= len(g.Nodes) {
		return false
	}
	ms := owner.MoveSpline()
	if g.has(flagSpeedUpdatePending) && !ms.Finalized() {
		g.clear(flagSpeedUpdatePending)
		g.passNodes(owner, ms.CurrentPathIdx())
		g.launch(owner)
		return g.current < len(g.Nodes)
	}
	g.passNodes(owner, ms.CurrentPathIdx())
	return !ms.Finalized() && g.current < len(g.Nodes)
}

func (g *Flight) passNodes(owner Moveable, reached int) {
	for g.current <= reached && g.current < len(g.Nodes) {
		inform(owner, KindFlight, g.Nodes[g.current].ID)
		g.current++
	}
}

func (g *Flight) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	owner.ClearUnitState(StateInFlight)
	if active && !owner.MoveSpline().Finalized() {
		stopMoving(owner)
	}
}
