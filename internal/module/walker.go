package module

// Result pairs one module's Process outcome with the module itself, so
// callers can find out which module raised which event without a
// second lookup.
type Result struct {
	Module Module
	Events Events
	Err    error
}

// Walker drives a fixed, pre-sorted list of modules: index order is
// topological (leaves-last), matching spec §4.5's "walk each parallel
// path of the sorted module list". The list is used in the order given
// (internal/gcfg.Apply passes the config's module order through without
// sorting it); the walker only ever iterates it.
type Walker struct {
	modules []Module
}

// NewWalker returns a walker over modules in their already-sorted order.
func NewWalker(modules []Module) *Walker {
	return &Walker{modules: modules}
}

// Len returns the number of modules in the topology.
func (w *Walker) Len() int { return len(w.modules) }

// At returns the module at sorted index i.
func (w *Walker) At(i int) Module { return w.modules[i] }

// IndexOf returns m's position in the sorted list, or -1 if not found.
func (w *Walker) IndexOf(m Module) int {
	for i, mod := range w.modules {
		if mod == m {
			return i
		}
	}
	return -1
}

// ProcessFrom invokes Process on every enabled module from startIdx to
// the end of the sorted list, in order, collecting each module's
// reported events. A module returning an error does not halt the walk
// (spec §7: "a module returning non-OK does not terminate the worker").
func (w *Walker) ProcessFrom(startIdx int) []Result {
	if startIdx < 0 {
		startIdx = 0
	}
	results := make([]Result, 0, len(w.modules)-startIdx)
	for i := startIdx; i < len(w.modules); i++ {
		m := w.modules[i]
		if !m.Enabled() {
			continue
		}
		ev, err := m.Process()
		results = append(results, Result{Module: m, Events: ev, Err: err})
	}
	return results
}

// ProcessAll is ProcessFrom(0), the common case at the start of an
// inner-loop iteration.
func (w *Walker) ProcessAll() []Result {
	return w.ProcessFrom(0)
}
