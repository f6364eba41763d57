// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/markup"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate <session> [section]",
	Short: "Draft one section, or every section with --all",
	Long: `Generate retrieves grounding for a section and drafts it with the
generation service. Paragraphs that are locked or were edited by the user
are kept verbatim. Failures are retried with backoff; a section that still
fails does not affect the others.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if all == (len(args) == 2) {
		return fmt.Errorf("name one section or pass --all")
	}

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	s, err := a.session(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if all {
		summary := a.pipeline.GenerateAll(ctx, s, out)
		fmt.Fprintf(out, "\ngenerated: %d, skipped: %d, failed: %d\n",
			summary.Generated, summary.Skipped, summary.Failed)
		if err := a.save(ctx, s); err != nil {
			return err
		}
		if summary.HasFailures() {
			return fmt.Errorf("%d section(s) failed generation", summary.Failed)
		}
		return nil
	}

	draft, err := a.pipeline.GenerateSection(ctx, s, args[1])
	if err != nil {
		return err
	}
	if err := a.save(ctx, s); err != nil {
		return err
	}
	fmt.Fprintf(out, "generated %s (%d words, %d citations)\n", draft.SectionName, draft.WordCount, len(draft.Citations))
	printWarnings(out, draft.Warnings)
	if show, _ := cmd.Flags().GetBool("show"); show {
		printDraft(out, draft)
	}
	return nil
}

func printWarnings(w io.Writer, warnings []types.Warning) {
	for _, warn := range warnings {
		level := "warning"
		if warn.Blocking {
			level = "blocking"
		}
		fmt.Fprintf(w, "  %s %s: %s\n", level, warn.Code, warn.Message)
	}
}

// printDraft prints each paragraph with its index and lock state so the
// user can address it in edit and lock commands.
func printDraft(w io.Writer, d types.SectionDraft) {
	for i, p := range markup.Paragraphs(d.Text) {
		mark := " "
		if d.IsLocked(i) {
			mark = "*"
		}
		fmt.Fprintf(w, "\n[%d]%s %s\n", i, mark, p)
	}
}

func init() {
	generateCmd.Flags().Bool("all", false, "generate every section in the blueprint")
	generateCmd.Flags().Bool("show", false, "print the drafted paragraphs")
	rootCmd.AddCommand(generateCmd)
}
