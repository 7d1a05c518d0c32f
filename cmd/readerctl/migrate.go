package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kittclouds/readerkit/internal/remote"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the remote schema",
	Long: `Applies the PostgreSQL schema (tables, pgvector extension and the
search_chunks function) to the configured remote backend. Safe to rerun.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	creds := remote.Credentials{URL: cfg.Remote.URL, APIKey: cfg.Remote.APIKey}
	if creds.Empty() {
		return errors.New("no remote url configured")
	}
	if err := migrateSchema(cmd.Context(), creds); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	cmd.Println("Remote schema is up to date.")
	return nil
}
