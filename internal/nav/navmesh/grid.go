package navmesh

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"navmotion.ai/internal/nav/geom"
)

// GridLayout describes a walkable map as character rows. Rows[0] is the row at
// y = Origin.y. Cell characters:
//
//	'#' or ' '  blocked
//	'.'         ground at height 0
//	'0'..'9'    ground at height n*StepHeight
//	'~'         water (swim only)
//	'='         road
type GridLayout struct {
	Origin        [3]float64 `yaml:"origin"`
	CellSize      float64    `yaml:"cell_size"`
	TileCells     int        `yaml:"tile_cells"`
	StepHeight    float64    `yaml:"step_height"`
	WalkableClimb float64    `yaml:"walkable_climb"`
	Rows          []string   `yaml:"rows"`
}

func LoadGridLayout(path string) (GridLayout, error) {
	var l GridLayout
	raw, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return l, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

func (l *GridLayout) normalize() {
	if l.CellSize <= 0 {
		l.CellSize = 1
	}
	if l.TileCells <= 0 {
		l.TileCells = 32
	}
	if l.TileCells > 64 {
		l.TileCells = 64
	}
	if l.StepHeight <= 0 {
		l.StepHeight = 0.5
	}
	if l.WalkableClimb <= 0 {
		l.WalkableClimb = l.StepHeight
	}
}

func (l *GridLayout) size() (w, h int) {
	for _, r := range l.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w, len(l.Rows)
}

func (l *GridLayout) cell(x, y int) byte {
	if y < 0 || y >= len(l.Rows) || x < 0 || x >= len(l.Rows[y]) {
		return '#'
	}
	return l.Rows[y][x]
}

type cellKind struct {
	level int
	flags uint16
	area  uint8
}

func kindOf(c byte) (cellKind, bool) {
	switch {
	case c == '.':
		return cellKind{flags: FlagWalk, area: AreaGround}, true
	case c >= '0' && c <= '9':
		return cellKind{level: int(c - '0'), flags: FlagWalk, area: AreaGround}, true
	case c == '~':
		return cellKind{flags: FlagSwim, area: AreaWater}, true
	case c == '=':
		return cellKind{flags: FlagWalk, area: AreaRoad}, true
	}
	return cellKind{}, false
}

// Params returns mesh parameters matching the tiles BuildGrid produces.
func (l GridLayout) Params() Params {
	l.normalize()
	w, h := l.size()
	tw := (w + l.TileCells - 1) / l.TileCells
	th := (h + l.TileCells - 1) / l.TileCells
	return Params{
		Origin:     geom.V(l.Origin[0], l.Origin[1], l.Origin[2]),
		TileWidth:  float64(l.TileCells) * l.CellSize,
		TileHeight: float64(l.TileCells) * l.CellSize,
		MaxTiles:   max(tw*th, 1),
	}
}

// BuildGrid bakes the layout into tiles. Inside each tile, equal cells are
// merged greedily into rectangles to keep polygon counts low.
func BuildGrid(l GridLayout) ([]*TileData, error) {
	l.normalize()
	w, h := l.size()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty layout: %w", ErrInvalidParam)
	}
	tc := l.TileCells
	var out []*TileData
	for ty := 0; ty*tc < h; ty++ {
		for tx := 0; tx*tc < w; tx++ {
			if d := l.buildTile(tx, ty); d != nil {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (l *GridLayout) buildTile(tx, ty int) *TileData {
	tc := l.TileCells
	x0, y0 := tx*tc, ty*tc
	used := make([]bool, tc*tc)
	ox, oy, oz := l.Origin[0], l.Origin[1], l.Origin[2]

	d := &TileData{
		X:             int32(tx),
		Y:             int32(ty),
		WalkableClimb: l.WalkableClimb,
		BMin:          geom.V(ox+float64(x0)*l.CellSize, oy+float64(y0)*l.CellSize, oz),
		BMax:          geom.V(ox+float64(x0+tc)*l.CellSize, oy+float64(y0+tc)*l.CellSize, oz),
	}
	same := func(cx, cy int, c byte) bool {
		if cx >= tc || cy >= tc || used[cy*tc+cx] {
			return false
		}
		return l.cell(x0+cx, y0+cy) == c
	}

	for cy := 0; cy < tc; cy++ {
		for cx := 0; cx < tc; cx++ {
			if used[cy*tc+cx] {
				continue
			}
			c := l.cell(x0+cx, y0+cy)
			k, ok := kindOf(c)
			if !ok {
				continue
			}
			rw := 1
			for same(cx+rw, cy, c) {
				rw++
			}
			rh := 1
		extend:
			for cy+rh < tc {
				for i := 0; i < rw; i++ {
					if !same(cx+i, cy+rh, c) {
						break extend
					}
				}
				rh++
			}
			for j := 0; j < rh; j++ {
				for i := 0; i < rw; i++ {
					used[(cy+j)*tc+cx+i] = true
				}
			}

			z := oz + float64(k.level)*l.StepHeight
			if z > d.BMax[2] {
				d.BMax[2] = z
			}
			ax := ox + float64(x0+cx)*l.CellSize
			ay := oy + float64(y0+cy)*l.CellSize
			bx := ax + float64(rw)*l.CellSize
			by := ay + float64(rh)*l.CellSize
			base := uint16(len(d.Verts))
			d.Verts = append(d.Verts, geom.V(ax, ay, z), geom.V(bx, ay, z), geom.V(bx, by, z), geom.V(ax, by, z))
			d.Polys = append(d.Polys, Poly{
				Verts: []uint16{base, base + 1, base + 2, base + 3},
				Flags: k.flags,
				Area:  k.area,
			})
		}
	}
	if len(d.Polys) == 0 {
		return nil
	}
	return d
}
