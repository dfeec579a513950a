package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// GraphErrorKind classifies graph validation failures.
type GraphErrorKind string

const (
	ErrKindDuplicate  GraphErrorKind = "duplicate"
	ErrKindUnknownDep GraphErrorKind = "unknown_dependency"
	ErrKindCycle      GraphErrorKind = "cycle"
)

// ErrInvalidGraph is matched by every GraphError.
var ErrInvalidGraph = errors.New("invalid stage graph")

// GraphError describes why a graph cannot be scheduled.
type GraphError struct {
	Kind GraphErrorKind
	// Path lists the stages involved; for cycles it starts and ends with the same stage.
	Path []string
	Msg  string
}

func (e *GraphError) Error() string { return e.Msg }

func (e *GraphError) Is(target error) bool { return target == ErrInvalidGraph }

// Node is a stage with its declared dependencies.
type Node struct {
	Stage Stage
	Deps  []string
}

// Graph is an ordered set of stages with dependency edges.
type Graph struct {
	nodes []Node
	index map[string]int
	dups  []string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[string]int)}
}

// Add registers s to run after deps. Duplicate names are reported by Validate.
func (g *Graph) Add(s Stage, deps ...string) *Graph {
	if _, ok := g.index[s.Name()]; ok {
		g.dups = append(g.dups, s.Name())
		return g
	}
	g.index[s.Name()] = len(g.nodes)
	g.nodes = append(g.nodes, Node{Stage: s, Deps: append([]string(nil), deps...)})
	return g
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Names returns the stage names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Stage.Name()
	}
	return out
}

// Get returns the node for name.
func (g *Graph) Get(name string) (Node, bool) {
	i, ok := g.index[name]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.nodes) }

// Validate rejects duplicate names, unknown dependencies and cycles.
func (g *Graph) Validate() error {
	if len(g.dups) > 0 {
		return &GraphError{Kind: ErrKindDuplicate, Path: g.dups, Msg: fmt.Sprintf("duplicate stage %q", g.dups[0])}
	}
	for _, n := range g.nodes {
		for _, d := range n.Deps {
			if _, ok := g.index[d]; !ok {
				return &GraphError{
					Kind: ErrKindUnknownDep,
					Path: []string{n.Stage.Name(), d},
					Msg:  fmt.Sprintf("stage %q depends on unknown stage %q", n.Stage.Name(), d),
				}
			}
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return &GraphError{Kind: ErrKindCycle, Path: cycle, Msg: "dependency cycle: " + strings.Join(cycle, " -> ")}
	}
	return nil
}

// findCycle returns one dependency cycle, or nil.
func (g *Graph) findCycle() []string {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(g.nodes))
	var stack []string
	var visit func(i int) []string
	visit = func(i int) []string {
		state[i] = visiting
		stack = append(stack, g.nodes[i].Stage.Name())
		for _, d := range g.nodes[i].Deps {
			j := g.index[d]
			switch state[j] {
			case visiting:
				for k, name := range stack {
					if name == d {
						return append(append([]string(nil), stack[k:]...), d)
					}
				}
			case unvisited:
				if c := visit(j); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[i] = done
		return nil
	}
	for i := range g.nodes {
		if state[i] == unvisited {
			if c := visit(i); c != nil {
				return c
			}
		}
	}
	return nil
}

// Order returns a topological order, ties broken by insertion order.
func (g *Graph) Order() ([]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	indeg, dependents := g.edges()
	var queue, order []string
	for _, n := range g.nodes {
		if indeg[n.Stage.Name()] == 0 {
			queue = append(queue, n.Stage.Name())
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, d := range dependents[cur] {
			indeg[d]--
			if indeg[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	return order, nil
}

// edges returns in-degrees and reverse adjacency, both in insertion order.
func (g *Graph) edges() (map[string]int, map[string][]string) {
	indeg := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for _, n := range g.nodes {
		name := n.Stage.Name()
		indeg[name] += 0
		seen := make(map[string]struct{}, len(n.Deps))
		for _, d := range n.Deps {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			indeg[name]++
			dependents[d] = append(dependents[d], name)
		}
	}
	return indeg, dependents
}

// Subgraph returns a graph with the named stages and their transitive
// dependencies, keeping insertion order.
func (g *Graph) Subgraph(names ...string) (*Graph, error) {
	keep := make(map[string]bool)
	var walk func(string) error
	walk = func(name string) error {
		if keep[name] {
			return nil
		}
		n, ok := g.Get(name)
		if !ok {
			return &GraphError{Kind: ErrKindUnknownDep, Path: []string{name}, Msg: fmt.Sprintf("unknown stage %q", name)}
		}
		keep[name] = true
		for _, d := range n.Deps {
			if err := walk(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := walk(name); err != nil {
			return nil, err
		}
	}
	sub := NewGraph()
	for _, n := range g.nodes {
		if keep[n.Stage.Name()] {
			sub.Add(n.Stage, n.Deps...)
		}
	}
	return sub, nil
}

// Only returns a graph with exactly the named stages; dependency edges to
// stages outside the selection are dropped.
func (g *Graph) Only(names ...string) (*Graph, error) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := g.index[name]; !ok {
			return nil, &GraphError{Kind: ErrKindUnknownDep, Path: []string{name}, Msg: fmt.Sprintf("unknown stage %q", name)}
		}
		want[name] = true
	}
	sub := NewGraph()
	for _, n := range g.nodes {
		if !want[n.Stage.Name()] {
			continue
		}
		var deps []string
		for _, d := range n.Deps {
			if want[d] {
				deps = append(deps, d)
			}
		}
		sub.Add(n.Stage, deps...)
	}
	return sub, nil
}
