package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	searchVector []float32
	searchLimit  int
)

var searchCmd = &cobra.Command{
	Use:   "search <doc-id>",
	Short: "Rank a document's chunks by similarity to a vector",
	Long: `Returns the chunks of a document whose embeddings are most similar
(cosine) to the query vector given with --vector.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Float32SliceVar(&searchVector, "vector", nil, "query embedding, comma separated")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (default from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(searchVector) == 0 {
		return errors.New("--vector is required")
	}
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	results := s.orch.SearchChunks(cmd.Context(), searchVector, args[0], searchLimit)
	if len(results) == 0 {
		cmd.Println("No matches.")
		return nil
	}
	for _, r := range results {
		cmd.Printf("%.4f  %s  %s\n", r.Similarity, r.ID, preview(r.Text, 60))
	}
	return nil
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
