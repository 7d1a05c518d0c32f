package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kittclouds/readerkit/internal/ingest"
)

var (
	importID   string
	importName string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a plain-text document",
	Long: `Reads extracted text from a file and saves it as a document with its
pages and chunks. Pages are separated by form feeds. Chunks are saved without
embeddings.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importID, "id", "", "document id (default: generated)")
	importCmd.Flags().StringVar(&importName, "name", "", "document name (default: file name)")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	id := importID
	if id == "" {
		id = "doc_" + uuid.NewString()
	}
	name := importName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	res := ingest.Text(id, name, string(data))
	saved, err := s.orch.SaveDocument(ctx, res.Document)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	synced := saved.Synced
	for i := range res.Chunks {
		r, err := s.orch.SaveChunk(ctx, &res.Chunks[i])
		if err != nil {
			return fmt.Errorf("failed to save chunk %d: %w", i, err)
		}
		synced = synced && r.Synced
	}

	where := "locally"
	if synced {
		where = "to the remote backend"
	}
	cmd.Printf("Imported %s (%d pages, %d chunks) %s.\n", id, res.Document.PageCount, len(res.Chunks), where)
	return nil
}
