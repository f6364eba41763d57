// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/assemble"
	"github.com/pdiddy/proposal-engine/internal/proposal"
	"github.com/pdiddy/proposal-engine/internal/quality"
)

var checkCmd = &cobra.Command{
	Use:   "check <session>",
	Short: "Re-run quality checks and report export readiness",
	Long: `Check re-runs the limit, citation, language and custom-rule checks on
every drafted section, stores the refreshed warnings, and lists whatever
blocks export.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(a *app, s *proposal.Session) error {
			p, reports := assembleSession(cmd.Context(), a, s)
			out := cmd.OutOrStdout()
			for _, sec := range s.Blueprint.Sections {
				rep, ok := reports[sec.Name]
				if !ok {
					fmt.Fprintf(out, "%-30s  not drafted\n", sec.Name)
					continue
				}
				status := "compliant"
				if !rep.BlueprintCompliant {
					status = "non-compliant"
				}
				fmt.Fprintf(out, "%-30s  %s, %d warning(s)\n", sec.Name, status, len(rep.Warnings))
				printWarnings(out, rep.Warnings)
			}
			printReadiness(cmd, p)
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export the assembled proposal or the session data",
	Long: `Export with --format markdown writes proposal.md, one file per section
and references.yaml into --out (default <store-dir>/<session-id>). Markdown
export is refused while blocking issues remain unless --force is given.

--format yaml or json writes the full session (blueprint and drafts) to
<store-dir>/session-<id>.<format>.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)

	return withSession(cmd, args[0], func(a *app, s *proposal.Session) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		if format != "markdown" && format != "md" {
			// Persist refreshed warnings before the store reads the session back.
			a.pipeline.Check(ctx, s)
			if err := a.save(ctx, s); err != nil {
				return err
			}
			path, err := a.store.ExportSession(ctx, s.ID, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s\n", path)
			return nil
		}

		p, _ := assembleSession(ctx, a, s)
		force, _ := cmd.Flags().GetBool("force")
		if !p.ExportReady && !force {
			printReadiness(cmd, p)
			return fmt.Errorf("export blocked by %d issue(s); resolve them or pass --force", len(p.Blocking))
		}

		dir, _ := cmd.Flags().GetString("out")
		if dir == "" {
			dir = filepath.Join(a.store.Dir(), s.ID)
		}
		paths, err := assemble.WriteProject(dir, p)
		if err != nil {
			return err
		}
		for _, path := range paths {
			fmt.Fprintf(out, "wrote %s\n", path)
		}
		return nil
	})
}

// assembleSession refreshes quality warnings and gap reports, then
// assembles the proposal from the session's drafts.
func assembleSession(ctx context.Context, a *app, s *proposal.Session) (assemble.Proposal, map[string]quality.Report) {
	reports := a.pipeline.Check(ctx, s)
	a.pipeline.RetrieveAll(ctx, s)
	return proposal.Assemble(s), reports
}

func printReadiness(cmd *cobra.Command, p assemble.Proposal) {
	out := cmd.OutOrStdout()
	if p.ExportReady {
		fmt.Fprintln(out, "\nready to export")
		return
	}
	fmt.Fprintf(out, "\nexport blocked:\n")
	for _, b := range p.Blocking {
		fmt.Fprintf(out, "  %s\n", b)
	}
}

func init() {
	exportCmd.Flags().StringP("format", "f", "markdown", "export format: markdown, yaml or json")
	exportCmd.Flags().StringP("out", "o", "", "output directory for markdown export")
	exportCmd.Flags().Bool("force", false, "export markdown even when blocking issues remain")
	rootCmd.AddCommand(checkCmd, exportCmd)
}
