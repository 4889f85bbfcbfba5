// Package depgraph provides the directed graph used to order extension
// load and unload plans.
package depgraph

import (
	"errors"

	graphlib "github.com/dominikbraun/graph"
)

// ErrDuplicateEdge is returned by AddEdge when the exact edge already
// exists. Callers treat it as a no-op: dependency walks legitimately
// revisit shared dependencies.
var ErrDuplicateEdge = errors.New("edge already exists")

// ErrNoTopologicalOrder is returned by Topo when the edge set contains a
// cycle. Resolvers reject cycles with a more specific error before the
// graph is linearized, so hitting this indicates an internal invariant
// violation.
var ErrNoTopologicalOrder = errors.New("graph has no topological order")

// Graph is a directed graph over extension ids. A Graph is built fresh for
// a single resolution call and discarded afterward; it is not safe for
// concurrent use.
type Graph struct {
	g     graphlib.Graph[string, string]
	order map[string]int // id -> insertion index, for stable topo ties
	next  int
}

// New creates an empty directed graph.
func New() *Graph {
	return &Graph{
		g:     graphlib.New(graphlib.StringHash, graphlib.Directed()),
		order: make(map[string]int),
	}
}

// AddNode inserts id as a node. Inserting an existing id is a no-op.
func (gr *Graph) AddNode(id string) {
	if err := gr.g.AddVertex(id); err != nil {
		if errors.Is(err, graphlib.ErrVertexAlreadyExists) {
			return
		}
		// AddVertex only fails for existing vertices.
		panic(err)
	}
	gr.order[id] = gr.next
	gr.next++
}

// HasNode reports whether id is a node of the graph.
func (gr *Graph) HasNode(id string) bool {
	_, ok := gr.order[id]
	return ok
}

// AddEdge inserts the directed edge u -> v, creating missing nodes.
// Returns ErrDuplicateEdge if the edge is already present.
func (gr *Graph) AddEdge(u, v string) error {
	gr.AddNode(u)
	gr.AddNode(v)
	if err := gr.g.AddEdge(u, v); err != nil {
		if errors.Is(err, graphlib.ErrEdgeAlreadyExists) {
			return ErrDuplicateEdge
		}
		return err
	}
	return nil
}

// Topo returns a linear order of all nodes consistent with every edge:
// for each edge u -> v, u appears before v. Nodes with no relative
// constraint are ordered by insertion, so the result is deterministic for
// a given construction history. Returns ErrNoTopologicalOrder if the edge
// set contains a cycle.
func (gr *Graph) Topo() ([]string, error) {
	sorted, err := graphlib.StableTopologicalSort(gr.g, func(a, b string) bool {
		return gr.order[a] < gr.order[b]
	})
	if err != nil {
		return nil, ErrNoTopologicalOrder
	}
	return sorted, nil
}
