// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/gaps"
	"github.com/pdiddy/proposal-engine/internal/retrieve"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <session> [section]",
	Short: "Show the grounding retrieved for each section",
	Long: `Retrieve searches the indexed documents for every blueprint section (or
only the named one) and prints the citations that pass the relevance
threshold, best first.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRetrieve,
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var results []retrieve.Result
	if len(args) == 2 {
		res, err := a.pipeline.Retrieve(cmd.Context(), s, args[1])
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		all := a.pipeline.RetrieveAll(cmd.Context(), s)
		for _, sec := range s.Blueprint.Sections {
			results = append(results, all[sec.Name])
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), results)
	}
	out := cmd.OutOrStdout()
	for _, res := range results {
		fmt.Fprintf(out, "%s (%d citations)\n", res.SectionName, len(res.Citations))
		for _, c := range res.Citations {
			fmt.Fprintf(out, "  %.2f  %s  %s\n", c.RelevanceScore, c.Marker(), truncate(c.Snippet, 80))
		}
		if res.Gap != nil {
			fmt.Fprintf(out, "  gap: %s: %s\n", res.Gap.Reason, res.Gap.Detail)
		}
	}
	return nil
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <session>",
	Short: "Report blueprint requirements without sufficient evidence",
	Long: `Gaps retrieves grounding for every section and lists the requirements the
indexed documents cannot support. Gaps on required sections are blocking.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.session(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		reports := gaps.Analyze(&s.Blueprint, a.pipeline.RetrieveAll(cmd.Context(), s))

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), reports)
		}
		printGaps(cmd.OutOrStdout(), reports)
		return nil
	},
}

func printGaps(w io.Writer, reports []types.GapReport) {
	if len(reports) == 0 {
		fmt.Fprintln(w, "No gaps: every section has grounding.")
		return
	}
	for _, g := range reports {
		fmt.Fprintf(w, "%-8s  %-15s  %s: %s\n", g.Severity, g.Reason, g.SectionName, g.UnmetRequirement)
		if g.Detail != "" {
			fmt.Fprintf(w, "          %s\n", g.Detail)
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	retrieveCmd.Flags().Bool("json", false, "output results as JSON")
	gapsCmd.Flags().Bool("json", false, "output gaps as JSON")
	rootCmd.AddCommand(retrieveCmd, gapsCmd)
}
