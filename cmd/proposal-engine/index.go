// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/acquire"
	"github.com/pdiddy/proposal-engine/internal/container"
	"github.com/pdiddy/proposal-engine/internal/convert"
	"github.com/pdiddy/proposal-engine/internal/ingest"
	"github.com/pdiddy/proposal-engine/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index <file|url>...",
	Short: "Index community-context documents for grounding",
	Long: `Index splits each document into page-scoped chunks and stores them in the
full-text index. Pages are separated by "<!-- page N -->" markers or form
feeds. Re-indexing a file replaces its earlier chunks.

PDF, Word, slide, spreadsheet and HTML files are converted to text with the
markitdown container image under docker or podman. URLs are downloaded into
<store-dir>/downloads first and reused on later runs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	paths, err := localPaths(cmd.Context(), st.Dir(), args, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	conv, err := converterFor(cmd.Context(), paths)
	if err != nil {
		return err
	}
	summary, err := ingest.IngestFiles(cmd.Context(), st, conv, cfg.Ingest, paths, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d document(s) failed indexing", summary.Failed)
	}
	return nil
}

// localPaths downloads URL arguments and returns every argument as a local
// path, in order.
func localPaths(ctx context.Context, storeDir string, args []string, out io.Writer) ([]string, error) {
	var f *acquire.Fetcher
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		if !acquire.IsURL(arg) {
			paths = append(paths, arg)
			continue
		}
		if f == nil {
			client := &http.Client{Timeout: cfg.Ingest.DownloadTimeout}
			f = acquire.NewFetcher(client, filepath.Join(storeDir, "downloads"), cfg.Ingest.UserAgent, 3)
		}
		path, skipped, err := f.Fetch(ctx, arg)
		if err != nil {
			return nil, err
		}
		if skipped {
			fmt.Fprintf(out, "cached  %s\n", path)
		} else {
			fmt.Fprintf(out, "fetched %s\n", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// converterFor starts the container-backed converter only when some path
// needs it.
func converterFor(ctx context.Context, paths []string) (convert.Converter, error) {
	if !slices.ContainsFunc(paths, convert.NeedsConversion) {
		return nil, nil
	}
	rt, err := container.Detect(ctx, cfg.Ingest.ContainerRuntime)
	if err != nil {
		return nil, fmt.Errorf("converting documents: %w", err)
	}
	logger.Debug("using container runtime", "runtime", rt.Name(), "image", cfg.Ingest.ConvertImage)
	conv, err := convert.NewMarkitdownConverter(ctx, rt, cfg.Ingest.ConvertImage)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List or remove indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		docs, err := st.ListDocuments(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents indexed.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tCHUNKS\tADDED")
		for _, d := range docs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Title, d.Chunks, d.AddedAt.Format("2006-01-02"))
		}
		return tw.Flush()
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Remove documents and their chunks from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, id := range args {
			if err := st.DeleteDocument(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
		}
		return nil
	},
}

func init() {
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(indexCmd, documentsCmd)
}
