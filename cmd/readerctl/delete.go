package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document and everything it owns",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.orch.DeleteDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if res.Synced {
		cmd.Printf("Deleted %s.\n", res.ID)
	} else {
		cmd.Printf("Deleted %s locally; the remote delete is queued.\n", res.ID)
	}
	return nil
}
