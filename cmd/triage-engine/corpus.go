// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the project corpus snapshot",
	Long: `Corpus manages the locally cached snapshot of tracked projects that
evaluations match against. refresh forces a fetch from the tracker and
re-embeds changed projects; status reports the snapshot's age and health.`,
}

var corpusRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a corpus refresh from the tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		projects, err := rt.corpus.Projects(context.Background(), true)
		if err != nil {
			return err
		}
		fmt.Printf("%d projects in corpus\n", len(projects))
		return nil
	},
}

var corpusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the snapshot's age and health",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(loadConfig())
		if err != nil {
			return err
		}
		defer rt.Close()

		h := rt.corpus.Health()
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		}

		fmt.Printf("Projects:   %d\n", h.Projects)
		if h.FetchedAt.IsZero() {
			fmt.Println("Fetched at: never")
		} else {
			fmt.Printf("Fetched at: %s\n", h.FetchedAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Printf("Stale:      %v\n", h.Stale)
		if h.LastError != "" {
			fmt.Printf("Last error: %s\n", h.LastError)
		}
		return nil
	},
}

func init() {
	corpusStatusCmd.Flags().Bool("json", false, "output status as JSON")

	corpusCmd.AddCommand(corpusRefreshCmd)
	corpusCmd.AddCommand(corpusStatusCmd)
	rootCmd.AddCommand(corpusCmd)
}
