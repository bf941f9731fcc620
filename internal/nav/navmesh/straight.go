package navmesh

import "navmotion.ai/internal/nav/geom"

// Straight path vertex flags.
const (
	StraightStart uint8 = 1 << 0
	StraightEnd   uint8 = 1 << 1
	// StraightPartial marks an end vertex short of endPos because the
	// corridor no longer connects.
	StraightPartial uint8 = 1 << 2
)

// StraightVert is one corner of a string-pulled path. Ref is the polygon the
// path enters at this corner, zero at the end point.
type StraightVert struct {
	Pos   geom.Vec3
	Flags uint8
	Ref   PolyRef
}

type straightBuf struct {
	verts []StraightVert
	max   int
}

// add appends a corner, merging it into the previous one when they coincide.
// Reports whether the buffer is full.
func (b *straightBuf) add(pos geom.Vec3, flags uint8, ref PolyRef) bool {
	if n := len(b.verts); n > 0 && geom.Equal(b.verts[n-1].Pos, pos) {
		b.verts[n-1].Flags = flags
		b.verts[n-1].Ref = ref
		return false
	}
	b.verts = append(b.verts, StraightVert{Pos: pos, Flags: flags, Ref: ref})
	return len(b.verts) >= b.max
}

// StraightPath pulls a string through corridor from startPos to endPos and
// returns its corner points (funnel algorithm). At most maxPoints are returned.
func (q *Query) StraightPath(startPos, endPos geom.Vec3, corridor []PolyRef, maxPoints int) ([]StraightVert, error) {
	if len(corridor) == 0 || maxPoints <= 0 {
		return nil, ErrInvalidParam
	}
	closestStart, err := q.ClosestPointOnPolyBoundary(corridor[0], startPos)
	if err != nil {
		return nil, err
	}
	closestEnd, err := q.ClosestPointOnPolyBoundary(corridor[len(corridor)-1], endPos)
	if err != nil {
		return nil, err
	}

	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()

	buf := &straightBuf{max: maxPoints}
	if buf.add(closestStart, StraightStart, corridor[0]) {
		return buf.verts, nil
	}

	if len(corridor) > 1 {
		apex := closestStart
		portalLeft := apex
		portalRight := apex
		apexIndex, leftIndex, rightIndex := 0, 0, 0
		var leftRef, rightRef PolyRef = corridor[0], corridor[0]

		for i := 0; i < len(corridor); i++ {
			var left, right geom.Vec3
			var toRef PolyRef

			if i+1 < len(corridor) {
				left, right, err = m.portal(corridor[i], corridor[i+1])
				if err != nil {
					// Corridor broken by a tile change; end at the last valid polygon.
					t, pi, rerr := m.resolve(corridor[i])
					if rerr != nil {
						return nil, rerr
					}
					end := closestOnBoundary(t.polyVerts(pi), endPos)
					buf.add(end, StraightEnd|StraightPartial, 0)
					return buf.verts, nil
				}
				toRef = corridor[i+1]
				if i == 0 {
					if d, _ := geom.DistPtSegSqr2D(apex, left, right); d < 1e-6 {
						continue
					}
				}
			} else {
				left = closestEnd
				right = closestEnd
			}

			// Tighten the right side.
			if geom.TriArea2D(apex, portalRight, right) >= 0 {
				if geom.Equal(apex, portalRight) || geom.TriArea2D(apex, portalLeft, right) < 0 {
					portalRight = right
					rightRef = toRef
					rightIndex = i
				} else {
					apex = portalLeft
					apexIndex = leftIndex
					var flags uint8
					if leftRef == 0 {
						flags = StraightEnd
					}
					if buf.add(apex, flags, leftRef) {
						return buf.verts, nil
					}
					portalLeft, portalRight = apex, apex
					leftIndex, rightIndex = apexIndex, apexIndex
					i = apexIndex
					continue
				}
			}

			// Tighten the left side.
			if geom.TriArea2D(apex, portalLeft, left) <= 0 {
				if geom.Equal(apex, portalLeft) || geom.TriArea2D(apex, portalRight, left) > 0 {
					portalLeft = left
					leftRef = toRef
					leftIndex = i
				} else {
					apex = portalRight
					apexIndex = rightIndex
					var flags uint8
					if rightRef == 0 {
						flags = StraightEnd
					}
					if buf.add(apex, flags, rightRef) {
						return buf.verts, nil
					}
					portalLeft, portalRight = apex, apex
					leftIndex, rightIndex = apexIndex, apexIndex
					i = apexIndex
					continue
				}
			}
		}
	}

	buf.add(closestEnd, StraightEnd, 0)
	return buf.verts, nil
}
