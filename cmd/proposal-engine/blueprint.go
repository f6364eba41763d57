// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/internal/blueprint"
	"github.com/pdiddy/proposal-engine/internal/ingest"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/proposal"
	"github.com/pdiddy/proposal-engine/internal/store"
)

var blueprintCmd = &cobra.Command{
	Use:   "blueprint <funding-call>",
	Short: "Extract a requirement blueprint and start a proposal session",
	Long: `Blueprint reads a funding call (plain text or Markdown), extracts the
sections the applicant must write with their limits and format hints, and
stores a new proposal session. The blueprint is printed as YAML.

With --ai the generation service proposes the blueprint and the heuristic
parser is used as a fallback.`,
	Args: cobra.ExactArgs(1),
	RunE: runBlueprint,
}

func runBlueprint(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	bcfg := cfg.Blueprint
	if useAI, _ := cmd.Flags().GetBool("ai"); useAI {
		bcfg.UseAI = true
	}
	var completer llm.Completer
	if bcfg.UseAI {
		completer, err = llm.New(bcfg.AIConfig, nil)
		if err != nil {
			logger.Warn("model-assisted extraction unavailable, using heuristics", "error", err)
		}
	}

	bp, err := blueprint.New(bcfg, completer, logger).Extract(cmd.Context(), string(data))
	if err != nil {
		var extractErr *blueprint.ExtractionError
		if errors.As(err, &extractErr) {
			return fmt.Errorf("%w\ncheck that the file is the full funding call text and try again", err)
		}
		return err
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	s := proposal.NewSession(ingest.DocumentID(args[0]), *bp)
	if err := st.SaveSession(cmd.Context(), s.Record()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s (%d sections)\n\n", s.ID, len(bp.Sections))
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(bp); err != nil {
		return err
	}
	return enc.Close()
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List proposal sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No sessions.")
			return nil
		}
		for _, s := range list {
			name := s.ProgramName
			if name == "" {
				name = s.FundingCallID
			}
			fmt.Fprintf(out, "%s  %-30s  %d/%d drafted  %s\n",
				s.ID[:8], name, s.Drafts, s.Sections, s.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Remove sessions and their drafts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, id := range args {
			fullID, err := st.DeleteSession(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("deleting %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", fullID)
		}
		return nil
	},
}

func init() {
	blueprintCmd.Flags().Bool("ai", false, "use the generation service for extraction")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(blueprintCmd, sessionsCmd)
}
