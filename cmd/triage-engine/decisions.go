// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/triage"
)

var decisionsCmd = &cobra.Command{
	Use:   "decisions",
	Short: "Read the decision audit trail",
}

var decisionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent decisions, newest first",
	RunE:  runDecisionsList,
}

func runDecisionsList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	store, err := triage.NewStore(cfg.Store.Dir, cfg.Store.DecisionTTL)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	taskID, _ := cmd.Flags().GetString("task-id")
	limit, _ := cmd.Flags().GetInt("limit")

	var records []triage.AuditRecord
	if taskID != "" {
		records, err = store.ByTask(ctx, taskID)
	} else {
		records, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No decisions recorded.")
		return nil
	}
	for _, r := range records {
		d := r.Decision
		fmt.Printf("%s  %-24s %-8s conf=%.2f align=%.2f  %s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.TaskID, d.Outcome, d.Confidence, d.AlignmentScore, joinReasons(d.ReasonCodes))
	}
	return nil
}

func init() {
	decisionsListCmd.Flags().String("task-id", "", "show only decisions for this task")
	decisionsListCmd.Flags().Int("limit", 20, "maximum number of decisions to list")
	decisionsListCmd.Flags().Bool("json", false, "output decisions as JSON")

	decisionsCmd.AddCommand(decisionsListCmd)
	rootCmd.AddCommand(decisionsCmd)
}
