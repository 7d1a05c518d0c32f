// Package graph is an adjacency view over a document's concept map.
// Edges may reference nodes that were never saved; they are kept and
// reported by Dangling rather than rejected.
package graph

import "sort"

// Node is a concept in the map.
type Node struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// Graph is a directed multigraph with insertion-ordered edges.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`

	// Adjacency lists: NodeID -> edges
	Outbound map[string][]*Edge `json:"outbound"`
	Inbound  map[string][]*Edge `json:"inbound"`

	order []string
	edges []*Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		Nodes:    make(map[string]*Node),
		Outbound: make(map[string][]*Edge),
		Inbound:  make(map[string][]*Edge),
	}
}

// AddNode adds a node if it doesn't exist, returns existing node otherwise.
func (g *Graph) AddNode(id, label, kind string) *Node {
	if existing, exists := g.Nodes[id]; exists {
		return existing
	}
	node := &Node{ID: id, Label: label, Kind: kind}
	g.Nodes[id] = node
	g.order = append(g.order, id)
	return node
}

// AddEdge records e whether or not its endpoints exist.
func (g *Graph) AddEdge(e *Edge) {
	g.edges = append(g.edges, e)
	g.Outbound[e.Source] = append(g.Outbound[e.Source], e)
	g.Inbound[e.Target] = append(g.Inbound[e.Target], e)
}

// Node returns the node with id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// OutgoingEdges returns the edges leaving id.
func (g *Graph) OutgoingEdges(id string) []*Edge {
	return g.Outbound[id]
}

// IncomingEdges returns the edges arriving at id.
func (g *Graph) IncomingEdges(id string) []*Edge {
	return g.Inbound[id]
}

// Neighbors returns the existing nodes connected to id in either direction,
// in edge order.
func (g *Graph) Neighbors(id string) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	visit := func(other string) {
		if seen[other] {
			return
		}
		seen[other] = true
		if node := g.Nodes[other]; node != nil {
			result = append(result, node)
		}
	}
	for _, e := range g.Outbound[id] {
		visit(e.Target)
	}
	for _, e := range g.Inbound[id] {
		visit(e.Source)
	}
	return result
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges, dangling ones included.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AllNodes returns nodes in insertion order.
func (g *Graph) AllNodes() []*Node {
	result := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		result = append(result, g.Nodes[id])
	}
	return result
}

// AllEdges returns edges in insertion order.
func (g *Graph) AllEdges() []*Edge {
	return append([]*Edge(nil), g.edges...)
}

// Dangling returns the edges whose source or target is not a node.
func (g *Graph) Dangling() []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if g.Nodes[e.Source] == nil || g.Nodes[e.Target] == nil {
			out = append(out, e)
		}
	}
	return out
}

// OrphanNodes returns nodes with no connections, sorted by id.
func (g *Graph) OrphanNodes() []*Node {
	var orphans []*Node
	for id, node := range g.Nodes {
		if len(g.Outbound[id]) == 0 && len(g.Inbound[id]) == 0 {
			orphans = append(orphans, node)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans
}

// DegreeCentrality computes (in+out)/(2*(n-1)) for each node.
func (g *Graph) DegreeCentrality() map[string]float64 {
	n := len(g.Nodes)
	result := make(map[string]float64, n)
	if n <= 1 {
		for id := range g.Nodes {
			result[id] = 0.0
		}
		return result
	}

	normalizer := 2.0 * float64(n-1)
	for id := range g.Nodes {
		result[id] = float64(len(g.Outbound[id])+len(g.Inbound[id])) / normalizer
	}
	return result
}
