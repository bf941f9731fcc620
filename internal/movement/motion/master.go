package motion

import (
	"go.uber.org/zap"
)

// Master owns the generator stack of one unit. stack[0] is the default
// generator and is never popped; only the top generator is updated.
type Master struct {
	owner    Moveable
	cfg      Config
	log      *zap.Logger
	stack    []Generator
	updating bool
	pending  []func()
}

func NewMaster(owner Moveable, cfg Config, log *zap.Logger) *Master {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.normalize()
	m := &Master{owner: owner, cfg: cfg, log: log.With(zap.Uint64("unit", owner.ID()))}
	idle := &Idle{}
	m.bind(idle)
	m.stack = []Generator{idle}
	idle.Initialize(owner)
	return m
}

func (m *Master) Config() Config { return m.cfg }

func (m *Master) Top() Generator { return m.stack[len(m.stack)-1] }

// Kind is the kind of the generator currently driving the unit.
func (m *Master) Kind() Kind { return m.Top().Kind() }

func (m *Master) Size() int { return len(m.stack) }

// Has reports whether a generator of kind k is anywhere on the stack.
func (m *Master) Has(k Kind) bool {
	for _, g := range m.stack {
		if g.Kind() == k {
			return true
		}
	}
	return false
}

func (m *Master) bind(g Generator) {
	if a, ok := g.(attacher); ok {
		a.attach(&m.cfg, m.log)
	}
}

// deferred queues fn while the active generator is updating.
func (m *Master) deferred(fn func()) bool {
	if m.updating {
		m.pending = append(m.pending, fn)
		return true
	}
	return false
}

// Push makes g the active generator. The previous top is interrupted. A top
// of the same kind is replaced rather than suspended.
func (m *Master) Push(g Generator) {
	if m.deferred(func() { m.Push(g) }) {
		return
	}
	m.bind(g)
	if top := m.Top(); len(m.stack) > 1 && top.Kind() == g.Kind() {
		m.stack = m.stack[:len(m.stack)-1]
		top.Finalize(m.owner, true, false)
	} else {
		top.Interrupt(m.owner)
	}
	m.stack = append(m.stack, g)
	m.log.Debug("motion push", zap.Stringer("kind", g.Kind()), zap.Int("depth", len(m.stack)))
	g.Initialize(m.owner)
}

// Pop finalizes the top generator and resets the one below it. The default
// generator is never popped.
func (m *Master) Pop() {
	if m.deferred(m.Pop) {
		return
	}
	if len(m.stack) > 1 {
		m.remove(m.Top(), false)
	}
}

// Remove drops every generator of kind k above the default.
func (m *Master) Remove(k Kind) {
	if m.deferred(func() { m.Remove(k) }) {
		return
	}
	for i := len(m.stack) - 1; i > 0; i-- {
		if m.stack[i].Kind() == k {
			m.remove(m.stack[i], false)
		}
	}
}

// Clear drops everything above the default generator.
func (m *Master) Clear() {
	if m.deferred(m.Clear) {
		return
	}
	for len(m.stack) > 1 {
		m.remove(m.Top(), false)
	}
}

// SetDefault replaces the bottom generator.
func (m *Master) SetDefault(g Generator) {
	if m.deferred(func() { m.SetDefault(g) }) {
		return
	}
	m.bind(g)
	old := m.stack[0]
	active := len(m.stack) == 1
	old.Finalize(m.owner, active, false)
	m.stack[0] = g
	g.Initialize(m.owner)
	if !active {
		g.Interrupt(m.owner)
	}
}

func (m *Master) remove(g Generator, movementInform bool) {
	idx := -1
	for i := len(m.stack) - 1; i > 0; i-- {
		if m.stack[i] == g {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	active := idx == len(m.stack)-1
	m.stack = append(m.stack[:idx], m.stack[idx+1:]...)
	g.Finalize(m.owner, active, movementInform)
	m.log.Debug("motion pop", zap.Stringer("kind", g.Kind()), zap.Bool("inform", movementInform))
	if active {
		m.Top().Reset(m.owner)
	}
}

// Update drives the active generator. A generator that reports false is
// removed with a movement inform. Stack changes requested meanwhile run
// afterwards, in order.
func (m *Master) Update(diff int32) {
	top := m.Top()
	m.updating = true
	keep := top.Update(m.owner, diff)
	m.updating = false
	if !keep && top != m.stack[0] {
		m.remove(top, true)
	}
	for len(m.pending) > 0 {
		fn := m.pending[0]
		m.pending = m.pending[1:]
		fn()
	}
}

// PropagateSpeedChange tells every generator the owner's speed changed.
func (m *Master) PropagateSpeedChange() {
	for _, g := range m.stack {
		g.SpeedChanged()
	}
}
