package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rwp0/Cor/internal/decl"
)

// HierarchyWarning flags a problem registration would later reject.
//
// Levels:
//   - "error": registration cannot succeed (inheritance cycle, a name
//     declared as both class and role, a class inheriting from a role)
//   - "warning": the set may just be a fragment (a parent or role not
//     declared here could be registered separately)
type HierarchyWarning struct {
	Path    []string `json:"path,omitempty"` // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"`        // Human-readable description
	Level   string   `json:"level"`          // "error" or "warning"
}

// LintHierarchy statically checks parent and role references across a
// whole declaration set before any registration is attempted.
//
// The algorithm:
//  1. Check every parent and role reference against the set's names
//  2. Build the class → parent dependency graph
//  3. Use Tarjan's algorithm to find strongly connected components
//  4. Report each SCC with size > 1 or a self-loop as a cycle
//
// A clean set returns an empty warning list. Multiple versions of the
// same class are one node: lint checks names, registration checks
// version constraints.
func LintHierarchy(classes []*decl.ClassDecl, roles []*decl.RoleDecl) []HierarchyWarning {
	classNames := make(map[string]bool)
	for _, c := range classes {
		classNames[c.Name] = true
	}
	roleNames := make(map[string]bool)
	for _, r := range roles {
		roleNames[r.Name] = true
	}

	var warnings []HierarchyWarning

	// Classes and roles share one namespace.
	var dual []string
	for name := range roleNames {
		if classNames[name] {
			dual = append(dual, name)
		}
	}
	sort.Strings(dual)
	for _, name := range dual {
		warnings = append(warnings, HierarchyWarning{
			Message: fmt.Sprintf("%q is declared as both a class and a role", name),
			Level:   "error",
		})
	}

	warnings = append(warnings, checkReferences(classes, classNames, roleNames)...)

	graph := buildParentGraph(classes)
	sccs := tarjanSCC(graph)
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleWarning(scc, graph))
		}
	}

	return warnings
}

// checkReferences reports dangling or cross-kind parent and role
// references, in declaration order.
func checkReferences(classes []*decl.ClassDecl, classNames, roleNames map[string]bool) []HierarchyWarning {
	var warnings []HierarchyWarning

	seen := make(map[string]bool)
	for _, c := range classes {
		// Versions of one class name share the lint result.
		key := c.Name + "\x00" + c.Version
		if seen[key] {
			continue
		}
		seen[key] = true

		if c.Parent != nil {
			switch {
			case roleNames[c.Parent.Name]:
				warnings = append(warnings, HierarchyWarning{
					Message: fmt.Sprintf("class %q inherits from %q, which is declared as a role", c.Name, c.Parent.Name),
					Level:   "error",
				})
			case !classNames[c.Parent.Name]:
				warnings = append(warnings, HierarchyWarning{
					Message: fmt.Sprintf("class %q inherits from %q, which is not declared in this set", c.Name, c.Parent.Name),
					Level:   "warning",
				})
			}
		}

		for _, role := range c.Roles {
			switch {
			case classNames[role]:
				warnings = append(warnings, HierarchyWarning{
					Message: fmt.Sprintf("class %q consumes %q as a role, but it is declared as a class", c.Name, role),
					Level:   "error",
				})
			case !roleNames[role]:
				warnings = append(warnings, HierarchyWarning{
					Message: fmt.Sprintf("class %q consumes role %q, which is not declared in this set", c.Name, role),
					Level:   "warning",
				})
			}
		}
	}

	return warnings
}

// parentGraph maps class name → parent names. Every version of a
// class contributes its edge, so a cycle through any version surfaces.
type parentGraph map[string][]string

func buildParentGraph(classes []*decl.ClassDecl) parentGraph {
	graph := make(parentGraph)

	for _, c := range classes {
		// Initialize with empty slice if no edges (ensures node exists in graph)
		if graph[c.Name] == nil {
			graph[c.Name] = []string{}
		}
		if c.Parent == nil {
			continue
		}
		if !hasEdge(graph[c.Name], c.Parent.Name) {
			graph[c.Name] = append(graph[c.Name], c.Parent.Name)
		}
	}

	return graph
}

func hasEdge(edges []string, to string) bool {
	for _, e := range edges {
		if e == to {
			return true
		}
	}
	return false
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph parentGraph) bool {
	return hasEdge(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's
// algorithm. Nodes are visited in sorted order so the result, and
// the warning paths built from it, are deterministic.
//
// Returns a list of SCCs, where each SCC is a list of class names.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph parentGraph) [][]string {
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
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, present := indices[w]; !present {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
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
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, present := indices[node]; !present {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleWarning converts an SCC to a HierarchyWarning.
//
// For self-loops, the path is [name, name]. For multi-node cycles,
// the path shows one traversal around the cycle.
func cycleWarning(scc []string, graph parentGraph) HierarchyWarning {
	if len(scc) == 1 {
		name := scc[0]
		return HierarchyWarning{
			Path:    []string{name, name},
			Message: fmt.Sprintf("class %q inherits from itself", name),
			Level:   "error",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return HierarchyWarning{
		Path:    path,
		Message: fmt.Sprintf("inheritance cycle: %s", strings.Join(path, " -> ")),
		Level:   "error",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node in the SCC, follow parent edges to
// other SCC members, continue until back at the start node.
func reconstructCyclePath(scc []string, graph parentGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
