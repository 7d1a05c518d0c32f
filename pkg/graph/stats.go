package graph

import "sort"

// Ranked is a node with its degree centrality.
type Ranked struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Degree float64 `json:"degree"`
}

// Stats summarises a concept map.
type Stats struct {
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
	Dangling int      `json:"dangling"`
	Orphans  []string `json:"orphans"`
	Central  []Ranked `json:"central"`
}

// Stats counts the map and ranks its top nodes by degree centrality. Ties
// keep insertion order. top <= 0 ranks every node.
func (g *Graph) Stats(top int) Stats {
	st := Stats{
		Nodes:    g.NodeCount(),
		Edges:    g.EdgeCount(),
		Dangling: len(g.Dangling()),
		Orphans:  []string{},
	}
	for _, n := range g.OrphanNodes() {
		st.Orphans = append(st.Orphans, n.ID)
	}

	degree := g.DegreeCentrality()
	ranked := make([]Ranked, 0, st.Nodes)
	for _, n := range g.AllNodes() {
		ranked = append(ranked, Ranked{ID: n.ID, Label: n.Label, Degree: degree[n.ID]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Degree > ranked[j].Degree })
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	st.Central = ranked
	return st
}

// Neighborhood is one node with the edges touching it.
type Neighborhood struct {
	Node      *Node   `json:"node"`
	Outgoing  []*Edge `json:"outgoing"`
	Incoming  []*Edge `json:"incoming"`
	Neighbors []*Node `json:"neighbors"`
}

// Neighborhood returns the node with id and its edges, or nil when id is
// neither a node nor the endpoint of an edge.
func (g *Graph) Neighborhood(id string) *Neighborhood {
	nb := &Neighborhood{
		Node:      g.Node(id),
		Outgoing:  g.OutgoingEdges(id),
		Incoming:  g.IncomingEdges(id),
		Neighbors: g.Neighbors(id),
	}
	if nb.Node == nil && len(nb.Outgoing) == 0 && len(nb.Incoming) == 0 {
		return nil
	}
	return nb
}
