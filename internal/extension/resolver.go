package extension

import (
	"errors"
	"sort"

	"github.com/Menersar/clipcc-extension/internal/depgraph"
)

// Resolver computes load and unload plans over a registry snapshot. It is
// a pure planner: it reads metadata and status but never mutates them.
// The caller is responsible for serializing resolution against
// registration changes.
type Resolver struct {
	view View
}

// NewResolver creates a resolver over the given registry view.
func NewResolver(view View) *Resolver {
	return &Resolver{view: view}
}

// stackEntry is one frame of the require stack: the dependency-recursion
// path used to attribute circular requirement errors.
type stackEntry struct {
	id      string
	version string
}

// ResolveLoadOrder walks the dependencies of the requested ids and
// returns a topologically ordered load plan: every dependency strictly
// before each of its dependents. Entries are tagged ModeInitiative when
// the id was in the request, ModePassive when it was pulled in
// transitively. A failure aborts the whole request; no partial plan is
// returned.
func (r *Resolver) ResolveLoadOrder(ids []string) ([]PlanEntry, error) {
	g := depgraph.New()
	var stack []stackEntry

	for _, id := range ids {
		info, ok := r.view.Info(id)
		if !ok {
			return nil, errUnavailable(id, stack)
		}
		if err := r.visitLoad(g, info, &stack); err != nil {
			return nil, err
		}
	}

	order, err := g.Topo()
	if err != nil {
		return nil, errNoOrder(err)
	}

	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}

	plan := make([]PlanEntry, 0, len(order))
	for _, id := range order {
		mode := ModePassive
		if requested[id] {
			mode = ModeInitiative
		}
		plan = append(plan, PlanEntry{ID: id, Mode: mode})
	}
	return plan, nil
}

// visitLoad walks the dependency map of info, adding dependency-before-
// dependent edges. The require stack tracks the current recursion path so
// circular requirements are reported with the exact requiring chain
// rather than an opaque graph-wide failure.
func (r *Resolver) visitLoad(g *depgraph.Graph, info Info, stack *[]stackEntry) error {
	*stack = append(*stack, stackEntry{id: info.ID, version: info.Version})
	defer func() { *stack = (*stack)[:len(*stack)-1] }()

	g.AddNode(info.ID)

	for _, dep := range sortedKeys(info.Dependencies) {
		required := info.Dependencies[dep]

		depInfo, ok := r.view.Info(dep)
		if !ok {
			return errUnavailable(dep, *stack)
		}
		for _, frame := range *stack {
			if frame.id == dep {
				return errCircular(dep, *stack)
			}
		}
		satisfied, err := Matches(depInfo.Version, required)
		if err != nil {
			return err
		}
		if !satisfied {
			return errVersionMismatch(dep, required, depInfo.Version, *stack)
		}

		// Dependency before dependent, so a forward topological order
		// loads dependencies first.
		if err := g.AddEdge(dep, info.ID); err != nil {
			if errors.Is(err, depgraph.ErrDuplicateEdge) {
				// Shared dependency, already walked through this edge.
				continue
			}
			return err
		}
		if err := r.visitLoad(g, depInfo, stack); err != nil {
			return err
		}
	}
	return nil
}

// ResolveUnloadOrder returns a safe teardown order for the requested ids:
// live dependents are cascaded in ahead of the extensions they depend on,
// and implicitly loaded dependencies are appended after the extensions
// that needed them so they become eligible for cleanup in the same pass.
// Requested ids that are not currently active are silently skipped.
func (r *Resolver) ResolveUnloadOrder(ids []string) ([]string, error) {
	g := depgraph.New()

	for _, id := range ids {
		if !r.view.Status(id).Active() {
			continue
		}
		r.visitUnload(g, id, "")
	}

	order, err := g.Topo()
	if err != nil {
		return nil, errNoOrder(err)
	}
	return order, nil
}

// visitUnload adds teardown-ordering edges around id. from is the node
// this visit arrived from; it is excluded from both scans to avoid
// backtracking the edge we came in on.
func (r *Resolver) visitUnload(g *depgraph.Graph, id, from string) {
	g.AddNode(id)

	// A dependent must unload before the dependency it relies on.
	for _, other := range r.view.KnownIDs() {
		if other == id || other == from {
			continue
		}
		if !r.view.Status(other).Active() {
			continue
		}
		info, ok := r.view.Info(other)
		if !ok {
			continue
		}
		if _, depends := info.Dependencies[id]; !depends {
			continue
		}
		if err := g.AddEdge(other, id); err != nil {
			// Duplicate edge: this dependent was already walked.
			continue
		}
		r.visitUnload(g, other, id)
	}

	// Dependencies that exist only on this extension's behalf unload
	// after it. Explicitly requested dependencies are never torn down as
	// a side effect.
	info, ok := r.view.Info(id)
	if !ok {
		return
	}
	for _, dep := range sortedKeys(info.Dependencies) {
		if dep == from {
			continue
		}
		if r.view.Status(dep) != StatusActiveImplicit {
			continue
		}
		if err := g.AddEdge(id, dep); err != nil {
			continue
		}
		r.visitUnload(g, dep, id)
	}
}

// sortedKeys returns the dependency ids in lexical order. Go maps iterate
// in random order; sorting keeps plans reproducible across runs.
func sortedKeys(deps map[string]string) []string {
	keys := make([]string, 0, len(deps))
	for k := range deps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
