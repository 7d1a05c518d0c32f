package main

import (
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and local store status",
	Long: `Connects to the configured remote backend, if any, and prints the
session mode, the pending sync queue and the record count of every local
namespace.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	st := s.orch.Status()
	cmd.Printf("Mode:         %s\n", mode(st.Connected))
	cmd.Printf("User:         %s\n", st.UserID)
	cmd.Printf("Pending:      %d\n", st.Pending)
	cmd.Printf("Dead letters: %d\n", st.DeadLetters)
	if st.LastSync != nil {
		cmd.Printf("Last sync:    %s\n", st.LastSync.At.Format(time.RFC3339))
		cmd.Print("              ")
		printReport(cmd, st.LastSync.Report)
	}

	counts, err := s.local.Counts()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(counts))
	for ns := range counts {
		names = append(names, ns)
	}
	sort.Strings(names)
	cmd.Println("Local records:")
	for _, ns := range names {
		cmd.Printf("  %-14s %d\n", ns, counts[ns])
	}
	return nil
}
