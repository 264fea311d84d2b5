package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/specialistvlad/gridci/internal/instance"
)

type node struct {
	inst       *instance.Instance
	index      int
	deps       map[string]*node
	dependents map[string]*node
}

// Graph is a thread-safe instance DAG.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*node
	order []*node
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddNode adds an instance to the graph. Instance ids must be unique.
func (g *Graph) AddNode(inst *instance.Instance) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := inst.Key()
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("instance already in graph: %s", id)
	}

	n := &node{
		inst:       inst,
		index:      len(g.order),
		deps:       make(map[string]*node),
		dependents: make(map[string]*node),
	}
	g.nodes[id] = n
	g.order = append(g.order, n)
	return nil
}

// AddEdge creates a directed edge from the `fromID` instance to the `toID`
// instance. This signifies that `toID` has a dependency on `fromID`.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source instance not found: %s", fromID)
	}
	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination instance not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return nil
}

// Instance looks up an instance by its canonical id.
func (g *Graph) Instance(id string) (*instance.Instance, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.inst, true
}

// Instances returns every instance in plan order.
func (g *Graph) Instances() []*instance.Instance {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]*instance.Instance, len(g.order))
	for i, n := range g.order {
		out[i] = n.inst
	}
	return out
}

// Len returns the number of instances.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Dependencies returns the instances the given instance depends on.
func (g *Graph) Dependencies(id string) ([]*instance.Instance, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	return sorted(n.deps), nil
}

// Dependents returns the instances that depend on the given instance.
func (g *Graph) Dependents(id string) ([]*instance.Instance, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("instance not found: %s", id)
	}
	return sorted(n.dependents), nil
}

// Roots returns the instances without dependencies.
func (g *Graph) Roots() []*instance.Instance {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var out []*instance.Instance
	for _, n := range g.order {
		if len(n.deps) == 0 {
			out = append(out, n.inst)
		}
	}
	return out
}

// DependencyCount returns how many instances the given instance waits for.
func (g *Graph) DependencyCount(id string) int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	if n, ok := g.nodes[id]; ok {
		return len(n.deps)
	}
	return 0
}

func sorted(set map[string]*node) []*instance.Instance {
	nodes := make([]*node, 0, len(set))
	for _, n := range set {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].index < nodes[j].index })

	out := make([]*instance.Instance, len(nodes))
	for i, n := range nodes {
		out[i] = n.inst
	}
	return out
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// if a cycle is found, indicating the first instance involved in the cycle.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// permanent: instances fully visited and not part of a cycle.
	// temporary: instances on the current recursion stack.
	permanent := make(map[*node]bool)
	temporary := make(map[*node]bool)

	var visit func(n *node) error
	visit = func(n *node) error {
		if permanent[n] {
			return nil
		}
		if temporary[n] {
			return fmt.Errorf("cycle detected involving instance '%s'", n.inst.Key())
		}
		temporary[n] = true
		for _, dependent := range sorted(n.dependents) {
			if err := visit(g.nodes[dependent.Key()]); err != nil {
				return err
			}
		}
		delete(temporary, n)
		permanent[n] = true
		return nil
	}

	for _, n := range g.order {
		if err := visit(n); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalSort returns the instances ordered so that each comes after all
// of its dependencies, breaking ties by plan order.
func (g *Graph) TopologicalSort() ([]*instance.Instance, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	indegree := make(map[*node]int, len(g.order))
	var ready []*node
	for _, n := range g.order {
		indegree[n] = len(n.deps)
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	out := make([]*instance.Instance, 0, len(g.order))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].index < ready[j].index })
		n := ready[0]
		ready = ready[1:]
		out = append(out, n.inst)
		for _, d := range n.dependents {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(out) != len(g.order) {
		return nil, fmt.Errorf("graph contains a cycle: %d of %d instances ordered", len(out), len(g.order))
	}
	return out, nil
}
