package navmesh

import (
	"container/heap"

	"go.uber.org/zap"

	"navmotion.ai/internal/nav/geom"
)

type nodeState uint8

const (
	nodeNew nodeState = iota
	nodeOpen
	nodeClosed
)

type node struct {
	ref    PolyRef
	parent int
	pos    geom.Vec3
	cost   float64
	total  float64
	state  nodeState
	index  int
}

type openList struct {
	nodes []*node
}

func (o openList) Len() int           { return len(o.nodes) }
func (o openList) Less(i, j int) bool { return o.nodes[i].total < o.nodes[j].total }
func (o openList) Swap(i, j int) {
	o.nodes[i], o.nodes[j] = o.nodes[j], o.nodes[i]
	o.nodes[i].index = i
	o.nodes[j].index = j
}
func (o *openList) Push(x any) {
	n := x.(*node)
	n.index = len(o.nodes)
	o.nodes = append(o.nodes, n)
}
func (o *openList) Pop() any {
	old := o.nodes
	n := old[len(old)-1]
	o.nodes = old[:len(old)-1]
	n.index = -1
	return n
}

// CorridorResult is the outcome of a corridor search.
type CorridorResult struct {
	Polys []PolyRef
	// Partial is set when the corridor stops short of the end polygon, either
	// because it is unreachable, the node budget ran out, or the corridor was
	// truncated to maxLen.
	Partial bool
}

// CorridorSearch runs A* over polygon adjacency from startRef to endRef.
// Node positions sit on portal midpoints. When endRef cannot be reached the
// corridor leads to the explored polygon closest to endPos.
func (q *Query) CorridorSearch(startRef, endRef PolyRef, startPos, endPos geom.Vec3, filter *Filter, maxLen int) (CorridorResult, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, _, err := m.resolve(startRef); err != nil {
		return CorridorResult{}, err
	}
	if _, _, err := m.resolve(endRef); err != nil {
		return CorridorResult{}, err
	}
	if maxLen <= 0 {
		return CorridorResult{}, ErrInvalidParam
	}
	if filter == nil {
		f := DefaultFilter()
		filter = &f
	}
	if startRef == endRef {
		return CorridorResult{Polys: []PolyRef{startRef}}, nil
	}

	nodes := make([]*node, 0, 64)
	byRef := make(map[PolyRef]int, 64)
	newNode := func(ref PolyRef) (*node, bool) {
		if i, ok := byRef[ref]; ok {
			return nodes[i], true
		}
		if len(nodes) >= q.maxNodes {
			return nil, false
		}
		n := &node{ref: ref, parent: -1, index: -1}
		byRef[ref] = len(nodes)
		nodes = append(nodes, n)
		return n, true
	}

	start, _ := newNode(startRef)
	start.pos = startPos
	start.total = geom.Dist(startPos, endPos) * heuristicScale
	start.state = nodeOpen
	open := &openList{}
	heap.Push(open, start)

	lastBest := start
	lastBestH := start.total
	outOfNodes := false

	for open.Len() > 0 {
		best := heap.Pop(open).(*node)
		best.state = nodeClosed
		if best.ref == endRef {
			lastBest = best
			break
		}

		bt, bpi, err := m.resolve(best.ref)
		if err != nil {
			continue
		}
		var parentRef PolyRef
		if best.parent >= 0 {
			parentRef = nodes[best.parent].ref
		}
		bestIdx := byRef[best.ref]

		for _, l := range bt.links[bpi] {
			nref := l.ref
			if nref == 0 || nref == parentRef {
				continue
			}
			nt, npi, err := m.resolve(nref)
			if err != nil {
				continue
			}
			npoly := &nt.data.Polys[npi]
			if !filter.pass(npoly) {
				continue
			}
			nb, ok := newNode(nref)
			if !ok {
				outOfNodes = true
				continue
			}
			if nb.state == nodeNew {
				a, b := bt.edge(bpi, int(l.edge))
				nb.pos = geom.Lerp(geom.Lerp(a, b, l.tmin), geom.Lerp(a, b, l.tmax), 0.5)
			}

			var cost, h float64
			if nref == endRef {
				cost = best.cost + filter.cost(best.pos, nb.pos, &bt.data.Polys[bpi]) +
					filter.cost(nb.pos, endPos, npoly)
			} else {
				cost = best.cost + filter.cost(best.pos, nb.pos, &bt.data.Polys[bpi])
				h = geom.Dist(nb.pos, endPos) * heuristicScale
			}
			total := cost + h
			if nb.state != nodeNew && total >= nb.total {
				continue
			}

			nb.parent = bestIdx
			nb.cost = cost
			nb.total = total
			if nb.state == nodeOpen {
				heap.Fix(open, nb.index)
			} else {
				nb.state = nodeOpen
				heap.Push(open, nb)
			}
			if h < lastBestH {
				lastBestH = h
				lastBest = nb
			}
		}
	}

	var rev []PolyRef
	for n := lastBest; ; n = nodes[n.parent] {
		rev = append(rev, n.ref)
		if n.parent < 0 {
			break
		}
	}
	res := CorridorResult{Partial: lastBest.ref != endRef}
	if outOfNodes && res.Partial {
		q.mesh.log.Debug("corridor search ran out of nodes", zap.Stringer("start", startRef), zap.Stringer("end", endRef))
	}
	res.Polys = make([]PolyRef, 0, min(len(rev), maxLen))
	for i := len(rev) - 1; i >= 0 && len(res.Polys) < maxLen; i-- {
		res.Polys = append(res.Polys, rev[i])
	}
	if len(res.Polys) < len(rev) {
		res.Partial = true
	}
	return res, nil
}
