// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/triage-engine/internal/normalize"
	"github.com/pdiddy/triage-engine/internal/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and validate the domain policy",
	Long: `Policy works with the YAML rule file without touching embeddings or the
tracker. Use check to classify a piece of text and lint to validate the
file after editing it.`,
}

var policyCheckCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Classify text against the domain policy",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyCheck,
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	pol, err := policy.Load(cfg.Policy.Path, cfg.Policy.HardVetoThreshold)
	if err != nil {
		return err
	}

	text, err := normalize.Normalize(args[0], cfg.Normalize.MaxLength)
	if err != nil {
		return err
	}
	verdict := pol.Classify(text)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}

	fmt.Printf("Category: %s\n", verdict.Category)
	fmt.Printf("Score:    %.2f\n", verdict.Score)
	if verdict.HardVeto {
		fmt.Println("Hard veto fired")
	}
	if len(verdict.MatchedRules) > 0 {
		fmt.Printf("Rules:    %s\n", strings.Join(verdict.MatchedRules, ", "))
	}
	fmt.Printf("Red-flag density: %.2f\n", pol.RedFlagDensity(text))
	return nil
}

var policyLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate the policy file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if _, err := policy.Load(cfg.Policy.Path, cfg.Policy.HardVetoThreshold); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", cfg.Policy.Path)
		return nil
	},
}

func init() {
	policyCheckCmd.Flags().Bool("json", false, "output the verdict as JSON")

	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyLintCmd)
	rootCmd.AddCommand(policyCmd)
}
