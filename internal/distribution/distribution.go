package distribution

import "fmt"

// Distribution holds everything collected about a module root: the discovered
// modules (in insertion order) and a view over their targets.
//
// A Distribution exclusively owns its Modules and, through them, their
// Targets. Dependency edges are by name only.
type Distribution struct {
	ModulePath string // the root directory the distribution was read from

	modules map[string]*Module
	order   []string
}

func New(modulePath string) *Distribution {
	return &Distribution{
		ModulePath: modulePath,
		modules:    make(map[string]*Module),
	}
}

// AddModule registers m. Module names are unique within a distribution.
func (d *Distribution) AddModule(m *Module) error {
	if _, ok := d.modules[m.Name]; ok {
		return fmt.Errorf("duplicate module name %q", m.Name)
	}
	d.modules[m.Name] = m
	d.order = append(d.order, m.Name)
	return nil
}

// Module returns the named module, or nil.
func (d *Distribution) Module(name string) *Module {
	return d.modules[name]
}

// Modules returns every module in insertion order.
func (d *Distribution) Modules() []*Module {
	out := make([]*Module, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.modules[name])
	}
	return out
}

// RemoveModule drops the named module and everything it owns. Reports whether
// a module was removed.
func (d *Distribution) RemoveModule(name string) bool {
	if _, ok := d.modules[name]; !ok {
		return false
	}
	delete(d.modules, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return true
}

// Targets returns the distribution-wide target collection.
func (d *Distribution) Targets() TargetCollection {
	return TargetCollection{dist: d}
}

// TargetCollection surfaces cross-module operations over every target
// reachable through some module. It holds no state of its own: iteration and
// removal act directly on the owning modules, so the two structures stay in
// lock-step by construction.
type TargetCollection struct {
	dist *Distribution
}

// All returns every target, following module insertion order and, within a
// module, declaration order.
func (c TargetCollection) All() []*Target {
	var out []*Target
	for _, name := range c.dist.order {
		out = append(out, c.dist.modules[name].Targets...)
	}
	return out
}

// Len reports the number of targets in the distribution.
func (c TargetCollection) Len() int {
	n := 0
	for _, m := range c.dist.modules {
		n += len(m.Targets)
	}
	return n
}

// Contains reports whether t is reachable through one of the distribution's
// modules. A detached target (nil module) is never contained.
func (c TargetCollection) Contains(t *Target) bool {
	if t.Module == nil {
		return false
	}
	if c.dist.modules[t.Module.Name] != t.Module {
		return false
	}
	for _, owned := range t.Module.Targets {
		if owned == t {
			return true
		}
	}
	return false
}

// Remove detaches t from its module and clears its module reference, so a
// later Contains reports false.
func (c TargetCollection) Remove(t *Target) error {
	if !c.Contains(t) {
		return fmt.Errorf("target %q is not in the distribution", t.Name)
	}
	m := t.Module
	for i, owned := range m.Targets {
		if owned == t {
			m.Targets = append(m.Targets[:i], m.Targets[i+1:]...)
			break
		}
	}
	t.Module = nil
	return nil
}

// RemoveAll removes each of the given targets.
func (c TargetCollection) RemoveAll(targets []*Target) error {
	for _, t := range targets {
		if err := c.Remove(t); err != nil {
			return err
		}
	}
	return nil
}
