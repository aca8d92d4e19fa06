// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/pkg/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [text]",
	Short: "Run one task through the full triage pipeline",
	Long: `Evaluate normalizes the task text, applies the domain policy, matches it
against the project corpus, and prints the resulting decision: admit,
reject, merge, or clarify, with the reason codes that produced it.

Text is read from the argument, or from stdin when the argument is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	text, err := evaluateText(args)
	if err != nil {
		return err
	}

	source, _ := cmd.Flags().GetString("source")
	if !types.ValidSource(types.TaskSource(source)) {
		return fmt.Errorf("unknown source %q (want tracker-native, import-a, import-b, or import-c)", source)
	}
	taskID, _ := cmd.Flags().GetString("task-id")
	if taskID == "" {
		taskID = "cli"
	}

	rt, err := buildRuntime(loadConfig())
	if err != nil {
		return err
	}
	defer rt.Close()

	decision, err := rt.engine.Evaluate(context.Background(), types.Task{
		ID:      taskID,
		Source:  types.TaskSource(source),
		RawText: text,
	})
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	}
	printDecision(decision)
	return nil
}

func evaluateText(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading task text from stdin: %w", err)
		}
		return string(data), nil
	}
	return args[0], nil
}

func printDecision(d types.Decision) {
	fmt.Printf("Outcome:    %s\n", d.Outcome)
	fmt.Printf("Confidence: %.2f\n", d.Confidence)
	fmt.Printf("Alignment:  %.2f\n", d.AlignmentScore)
	fmt.Printf("Reasons:    %s\n", joinReasons(d.ReasonCodes))
	if len(d.Tags) > 0 {
		fmt.Printf("Tags:       %s\n", strings.Join(d.Tags, ", "))
	}
	if len(d.MergeTargets) > 0 {
		fmt.Printf("Merge into: %s\n", strings.Join(d.MergeTargets, ", "))
	}
	for _, m := range d.Matches {
		fmt.Printf("  match #%d  %-30s %.3f\n", m.Rank, m.ProjectID, m.Similarity)
	}
	for _, q := range d.ClarificationQuestions {
		fmt.Printf("  clarify: %s\n", q)
	}
}

func joinReasons(codes []types.ReasonCode) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

func init() {
	evaluateCmd.Flags().String("task-id", "", "task identifier recorded in the audit trail")
	evaluateCmd.Flags().String("source", string(types.SourceTracker), "origin system (tracker-native, import-a, import-b, import-c)")
	evaluateCmd.Flags().Bool("json", false, "output the decision as JSON")

	rootCmd.AddCommand(evaluateCmd)
}
