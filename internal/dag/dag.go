// SPDX-License-Identifier: MPL-2.0

// Package dag orders the nodes of a dependency graph. The reference resolver
// uses it so that every referenced field is materialized before the fields
// that use it.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports a closed path following edge direction: the first
	// node is repeated as the last element (a -> b -> a).
	CycleError struct {
		Cycle []string
	}

	// Graph is a directed graph keyed by string. An edge from a to b means a
	// depends on b, so b is ordered first. Nodes and edges keep insertion
	// order, which makes Order deterministic.
	Graph struct {
		nodes []string
		deps  map[string][]string
	}
)

// Error renders the cycle as a chain of nodes.
func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{deps: make(map[string][]string)}
}

// AddNode adds name; adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if _, ok := g.deps[name]; ok {
		return
	}
	g.deps[name] = nil
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from depends on to, adding both nodes as needed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.deps[from] = append(g.deps[from], to)
}

// Order returns every node after all of its dependencies, or a *CycleError
// naming the first cycle found when walking nodes in insertion order.
func (g *Graph) Order() ([]string, error) {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var path []string

	var visit func(n string) *CycleError
	visit = func(n string) *CycleError {
		state[n] = onPath
		path = append(path, n)
		for _, dep := range g.deps[n] {
			switch state[dep] {
			case onPath:
				start := indexOf(path, dep)
				cycle := append(append([]string{}, path[start:]...), dep)
				return &CycleError{Cycle: cycle}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		state[n] = done
		order = append(order, n)
		return nil
	}

	for _, n := range g.nodes {
		if state[n] != unvisited {
			continue
		}
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
