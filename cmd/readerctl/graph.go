package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kittclouds/readerkit/internal/orchestrator"
	"github.com/kittclouds/readerkit/pkg/graph"
)

var (
	graphNode  string
	graphTop   int
	graphEdges bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <doc-id>",
	Short: "Summarise a document's concept map",
	Long: `Prints the node and edge counts of a document's concept map, its
most connected nodes, unconnected nodes and edges pointing at missing nodes.
With --node, prints that node's edges and neighbours instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	graphCmd.Flags().StringVar(&graphNode, "node", "", "show one node's neighbourhood")
	graphCmd.Flags().IntVar(&graphTop, "top", 5, "number of central nodes to list")
	graphCmd.Flags().BoolVar(&graphEdges, "edges", false, "list every edge")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	view := orchestrator.View(s.orch.GetGraph(cmd.Context(), args[0]))
	if graphNode != "" {
		nb := view.Neighborhood(graphNode)
		if nb == nil {
			return fmt.Errorf("node %s not found in %s", graphNode, args[0])
		}
		printNeighborhood(cmd, graphNode, nb)
		return nil
	}

	st := view.Stats(graphTop)
	cmd.Printf("Nodes: %d  Edges: %d  Dangling: %d\n", st.Nodes, st.Edges, st.Dangling)
	if len(st.Central) > 0 {
		cmd.Println("Most connected:")
		for _, r := range st.Central {
			cmd.Printf("  %.3f  %s  %s\n", r.Degree, r.ID, r.Label)
		}
	}
	if len(st.Orphans) > 0 {
		cmd.Printf("Unconnected: %s\n", strings.Join(st.Orphans, ", "))
	}
	if graphEdges {
		cmd.Println("Edges:")
		for _, e := range view.AllEdges() {
			cmd.Printf("  %s --%s--> %s\n", e.Source, e.Relation, e.Target)
		}
	}
	return nil
}

func printNeighborhood(cmd *cobra.Command, id string, nb *graph.Neighborhood) {
	if nb.Node != nil {
		cmd.Printf("%s (%s): %s\n", id, nb.Node.Kind, nb.Node.Label)
	} else {
		cmd.Printf("%s: missing node\n", id)
	}
	for _, e := range nb.Outgoing {
		cmd.Printf("  --%s--> %s\n", e.Relation, e.Target)
	}
	for _, e := range nb.Incoming {
		cmd.Printf("  <--%s-- %s\n", e.Relation, e.Source)
	}
	labels := make([]string, 0, len(nb.Neighbors))
	for _, n := range nb.Neighbors {
		labels = append(labels, n.Label)
	}
	if len(labels) > 0 {
		cmd.Printf("Neighbours: %s\n", strings.Join(labels, ", "))
	}
}
