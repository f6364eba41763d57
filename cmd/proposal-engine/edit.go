// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/proposal"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var editCmd = &cobra.Command{
	Use:   "edit <session> <section> <index> <text|->",
	Short: "Replace one paragraph of a section draft",
	Long: `Edit replaces the paragraph at index with new text and locks it, so later
regeneration keeps it verbatim. An index past the end appends a paragraph.
Pass "-" to read the paragraph from standard input, or --file to read it
from a file. Citation markers must refer to sources already cited in the
section; other markers are removed with a warning.`,
	Args: cobra.MinimumNArgs(3),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("paragraph index %q: %w", args[2], err)
	}
	file, _ := cmd.Flags().GetString("file")
	text, err := editText(args[3:], file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	return withSession(cmd, args[0], func(a *app, s *proposal.Session) error {
		draft, err := a.pipeline.Edit(cmd.Context(), s, types.EditOverlay{
			SectionName: args[1],
			Paragraphs:  map[int]string{index: text},
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "edited %s paragraph %d (%d words)\n", draft.SectionName, index, draft.WordCount)
		printWarnings(out, draft.Warnings)
		return nil
	})
}

// editText resolves the replacement paragraph from a file, standard input
// ("-") or the remaining arguments.
func editText(args []string, file string, stdin io.Reader) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case len(args) == 1 && args[0] == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return "", fmt.Errorf("paragraph text required: pass it as arguments, \"-\" or --file")
	}
}

var lockCmd = &cobra.Command{
	Use:   "lock <session> <section> <index>...",
	Short: "Lock paragraphs so regeneration keeps them verbatim",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		indices, err := parseIndices(args[2:])
		if err != nil {
			return err
		}
		return withSession(cmd, args[0], func(_ *app, s *proposal.Session) error {
			if err := s.Lock(args[1], indices...); err != nil {
				return err
			}
			return printLocks(cmd.OutOrStdout(), s, args[1])
		})
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <session> <section> [index...]",
	Short: "Unlock paragraphs, or all of them with --clear",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearAll, _ := cmd.Flags().GetBool("clear")
		if clearAll == (len(args) > 2) {
			return fmt.Errorf("name paragraph indices or pass --clear")
		}
		indices, err := parseIndices(args[2:])
		if err != nil {
			return err
		}
		return withSession(cmd, args[0], func(_ *app, s *proposal.Session) error {
			if clearAll {
				err = s.ClearLocks(args[1])
			} else {
				err = s.Unlock(args[1], indices...)
			}
			if err != nil {
				return err
			}
			return printLocks(cmd.OutOrStdout(), s, args[1])
		})
	},
}

func parseIndices(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, a := range args {
		for f := range strings.SplitSeq(a, ",") {
			if f = strings.TrimSpace(f); f == "" {
				continue
			}
			i, err := strconv.Atoi(f)
			if err != nil || i < 0 {
				return nil, fmt.Errorf("invalid paragraph index %q", f)
			}
			out = append(out, i)
		}
	}
	return types.NormalizeIndices(out), nil
}

func printLocks(w io.Writer, s *proposal.Session, section string) error {
	spec, err := s.Spec(section)
	if err != nil {
		return err
	}
	d, _ := s.Draft(spec.Name)
	fmt.Fprintf(w, "%s locked paragraphs: %v\n", spec.Name, d.LockedParagraphs)
	return nil
}

var showCmd = &cobra.Command{
	Use:   "show <session> [section]",
	Short: "Print drafted sections with paragraph indices and warnings",
	Args:  cobra.RangeArgs(1, 2),
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
		names := make([]string, 0, len(s.Blueprint.Sections))
		if len(args) == 2 {
			spec, err := s.Spec(args[1])
			if err != nil {
				return err
			}
			names = append(names, spec.Name)
		} else {
			for _, sec := range s.Blueprint.Sections {
				names = append(names, sec.Name)
			}
		}

		out := cmd.OutOrStdout()
		for _, name := range names {
			d, ok := s.Draft(name)
			if !ok {
				fmt.Fprintf(out, "== %s (not drafted)\n\n", name)
				continue
			}
			status := ""
			if d.HasBlocking() {
				status = ", blocks export"
			}
			fmt.Fprintf(out, "== %s (%d words, %d citations%s)\n", name, d.WordCount, len(d.Citations), status)
			printWarnings(out, d.Warnings)
			printDraft(out, d)
			fmt.Fprintln(out)
		}
		return nil
	},
}

// withSession opens the app, loads the session, runs fn and saves the
// session when fn succeeds.
func withSession(cmd *cobra.Command, id string, fn func(a *app, s *proposal.Session) error) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(cmd.Context(), id)
	if err != nil {
		return err
	}
	if err := fn(a, s); err != nil {
		return err
	}
	return a.save(cmd.Context(), s)
}

func init() {
	editCmd.Flags().String("file", "", "read the paragraph from a file")
	unlockCmd.Flags().Bool("clear", false, "unlock every paragraph in the section")
	rootCmd.AddCommand(editCmd, lockCmd, unlockCmd, showCmd)
}
