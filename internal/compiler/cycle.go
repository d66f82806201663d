package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// ExpressionCycle reports named expressions that reference each other.
//
// Unlike a lin-op graph, which may share nodes but never loops, a cycle among
// named expressions has no finite expansion, so it is always an error.
type ExpressionCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCycles finds cycles among named expressions.
//
// The algorithm:
//  1. Build name → referenced-expression-names graph (leaf references and
//     unparsable sources are ignored; Validate reports those separately)
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle
//
// An acyclic set returns an empty list. Output order is deterministic.
func AnalyzeCycles(exprs map[string]string) []ExpressionCycle {
	if len(exprs) == 0 {
		return []ExpressionCycle{}
	}

	graph := buildDependencyGraph(exprs)
	sccs := tarjanSCC(graph)

	cycles := []ExpressionCycle{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	slices.SortFunc(cycles, func(a, b ExpressionCycle) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return cycles
}

// dependencyGraph maps expression name → expression names it references.
type dependencyGraph map[string][]string

func buildDependencyGraph(exprs map[string]string) dependencyGraph {
	graph := make(dependencyGraph, len(exprs))
	for _, name := range sortedKeys(exprs) {
		graph[name] = []string{}
		refs, err := referencedNames(exprs[name])
		if err != nil {
			continue
		}
		for _, r := range refs {
			if _, ok := exprs[r]; ok {
				graph[name] = append(graph[name], r)
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// SCC members are sorted so the smallest name starts the reported path.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range sortedKeys(graph) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func sccToCycle(scc []string, graph dependencyGraph) ExpressionCycle {
	if len(scc) == 1 {
		name := scc[0]
		return ExpressionCycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("expression %s references itself", name),
		}
	}
	path := reconstructCyclePath(scc, graph)
	return ExpressionCycle{
		Path:    path,
		Message: fmt.Sprintf("expression cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath follows edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}

// evaluationOrder returns the named expressions ordered so that each comes
// after the expressions it references. It assumes AnalyzeCycles found none.
func evaluationOrder(exprs map[string]string) []string {
	graph := buildDependencyGraph(exprs)
	var (
		order []string
		done  = make(map[string]bool, len(graph))
	)
	var visit func(string)
	visit = func(n string) {
		if done[n] {
			return
		}
		done[n] = true
		for _, dep := range graph[n] {
			visit(dep)
		}
		order = append(order, n)
	}
	for _, n := range sortedKeys(graph) {
		visit(n)
	}
	return order
}
