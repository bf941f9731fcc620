package navmesh

import "errors"

var (
	ErrInvalidRef   = errors.New("navmesh: invalid poly ref")
	ErrInvalidParam = errors.New("navmesh: invalid param")
	ErrNoTile       = errors.New("navmesh: no tile at location")
	ErrTileExists   = errors.New("navmesh: tile already loaded")
	ErrOutOfSlots   = errors.New("navmesh: tile slots exhausted")
	ErrNoPolygon    = errors.New("navmesh: no polygon near position")
	ErrWrongMagic   = errors.New("navmesh: wrong tile magic")
	ErrWrongVersion = errors.New("navmesh: wrong tile version")
)
