package graph

import "testing"

func TestStats(t *testing.T) {
	g := buildMap()
	g.AddNode("memmi", "Albert Memmi", "person")
	g.AddEdge(&Edge{ID: "e3", Source: "violence", Target: "missing", Relation: "leads to"})

	st := g.Stats(2)
	if st.Nodes != 4 || st.Edges != 3 || st.Dangling != 1 {
		t.Errorf("Stats counts = %d/%d/%d, want 4/3/1", st.Nodes, st.Edges, st.Dangling)
	}
	if len(st.Orphans) != 1 || st.Orphans[0] != "memmi" {
		t.Errorf("Orphans = %v, want [memmi]", st.Orphans)
	}
	if len(st.Central) != 2 {
		t.Fatalf("Central = %d entries, want 2", len(st.Central))
	}
	if st.Central[0].ID != "fanon" || st.Central[1].ID != "violence" {
		t.Errorf("Central = %+v, want fanon then violence", st.Central)
	}
	if st.Central[0].Label != "Frantz Fanon" {
		t.Errorf("Label = %s, want Frantz Fanon", st.Central[0].Label)
	}
}

func TestStatsEmptyGraph(t *testing.T) {
	st := New().Stats(0)
	if st.Nodes != 0 || len(st.Central) != 0 {
		t.Errorf("empty Stats = %+v", st)
	}
	if st.Orphans == nil {
		t.Error("Orphans should encode as an empty list")
	}
}

func TestNeighborhood(t *testing.T) {
	g := buildMap()

	nb := g.Neighborhood("violence")
	if nb == nil || nb.Node == nil {
		t.Fatal("violence neighborhood missing")
	}
	if len(nb.Incoming) != 1 || len(nb.Outgoing) != 0 {
		t.Errorf("violence edges = %d in / %d out, want 1/0", len(nb.Incoming), len(nb.Outgoing))
	}
	if len(nb.Neighbors) != 1 || nb.Neighbors[0].ID != "fanon" {
		t.Errorf("Neighbors = %+v, want [fanon]", nb.Neighbors)
	}

	// A dangling endpoint has edges but no node
	g.AddEdge(&Edge{ID: "e3", Source: "violence", Target: "missing"})
	if nb := g.Neighborhood("missing"); nb == nil || nb.Node != nil || len(nb.Incoming) != 1 {
		t.Errorf("missing neighborhood = %+v", nb)
	}
	if g.Neighborhood("nowhere") != nil {
		t.Error("unknown id should have no neighborhood")
	}
}
