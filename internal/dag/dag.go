// Package dag provides directed-graph operations shared by the schema
// exporter (container constraint ordering), the validators (inheritance
// cycle detection), and the workflow engine (step graph checks).
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed graph keyed by string identifiers. Edges point
// from a dependency to its dependents.
type Graph struct {
	nodes   map[string]struct{}
	edges   map[string][]string // dependency -> dependents
	parents map[string][]string // dependent -> dependencies
	order   []string            // insertion order, used for stable ties
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]struct{}),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = struct{}{}
	g.order = append(g.order, id)
}

// AddEdge adds an edge from a dependency to a dependent. Both nodes must
// exist, and self-loops are rejected.
func (g *Graph) AddEdge(dependency, dependent string) error {
	if _, ok := g.nodes[dependency]; !ok {
		return fmt.Errorf("node %q does not exist", dependency)
	}
	if _, ok := g.nodes[dependent]; !ok {
		return fmt.Errorf("node %q does not exist", dependent)
	}
	if dependency == dependent {
		return fmt.Errorf("self-loop on %q", dependency)
	}
	if !contains(g.edges[dependency], dependent) {
		g.edges[dependency] = append(g.edges[dependency], dependent)
	}
	if !contains(g.parents[dependent], dependency) {
		g.parents[dependent] = append(g.parents[dependent], dependency)
	}
	return nil
}

// HasNode reports whether the node exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Dependencies returns the nodes the given node depends on.
func (g *Graph) Dependencies(id string) []string { return g.parents[id] }

// Dependents returns the nodes depending on the given node.
func (g *Graph) Dependents(id string) []string { return g.edges[id] }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// FindCycle returns a cycle path if the graph contains one. The path
// starts and ends on the same node.
func (g *Graph) FindCycle() ([]string, bool) {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		inStack[id] = true
		for _, next := range g.edges[id] {
			if !visited[next] {
				cameFrom[next] = id
				if dfs(next) {
					return true
				}
			} else if inStack[next] {
				cycle = []string{next}
				for cur := id; cur != next; cur = cameFrom[cur] {
					cycle = append([]string{cur}, cycle...)
				}
				cycle = append([]string{next}, cycle...)
				return true
			}
		}
		inStack[id] = false
		return false
	}

	for _, id := range g.sortedIDs() {
		if !visited[id] {
			if dfs(id) {
				return cycle, true
			}
		}
	}
	return nil, false
}

// TopoSort returns node IDs with every dependency before its dependents.
// Ties break on insertion order, so declaration order in the source
// workbook is preserved. Returns an error when the graph has a cycle.
func (g *Graph) TopoSort() ([]string, error) {
	if cycle, ok := g.FindCycle(); ok {
		return nil, fmt.Errorf("cycle detected: %v", cycle)
	}

	visited := make(map[string]bool)
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.parents[id] {
			visit(dep)
		}
		result = append(result, id)
	}

	for _, id := range g.order {
		visit(id)
	}
	return result, nil
}

// Roots returns nodes with no dependencies, in insertion order.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Reachable returns all nodes reachable from the given starts, the
// starts included, sorted.
func (g *Graph) Reachable(starts ...string) []string {
	seen := make(map[string]bool)
	var mark func(id string)
	mark = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, next := range g.edges[id] {
			mark(next)
		}
	}
	for _, id := range starts {
		if _, ok := g.nodes[id]; ok {
			mark(id)
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
