package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benefitsflow/benefits-rag/internal/connectors/filesystem"
	"github.com/benefitsflow/benefits-rag/internal/logger"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest benefits documents into the corpus",
	Long: `Reads .txt and .md files under the given directory, segments them
into chunks, embeds the chunks and indexes them for retrieval.

Re-running over unchanged files is a no-op; changed files get a new
version and the old version is retired from the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "stay running and re-ingest on file changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := initApp(); err != nil {
		return err
	}
	dir := args[0]
	ctx := cmd.Context()

	if err := ingestOnce(ctx, cmd, dir); err != nil {
		return err
	}

	if !ingestWatch {
		return nil
	}

	watcher, err := filesystem.NewWatcher(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	defer watcher.Close()
	go watcher.Run(ctx)

	cmd.Printf("Watching %s for changes (Ctrl-C to stop)...\n", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-watcher.Changes():
			if err := ingestOnce(ctx, cmd, dir); err != nil {
				logger.Warn("Re-ingest failed: %v", err)
			}
		}
	}
}

func ingestOnce(ctx context.Context, cmd *cobra.Command, dir string) error {
	stats, err := ingestor.Ingest(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	saveSnapshot()

	cmd.Printf("Ingested %d documents (%d unchanged), %d chunks indexed\n",
		stats.DocumentsIngested, stats.DocumentsSkipped, stats.ChunksIndexed)
	for _, e := range stats.Errors {
		cmd.Printf("  error: %s\n", e)
	}
	if len(stats.Errors) > 0 {
		return fmt.Errorf("%d documents failed", len(stats.Errors))
	}
	return nil
}
