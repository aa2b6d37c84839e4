package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/core/ports/driven"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status <collection>",
	Short: "Show per-document pipeline status and recent runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	collection := args[0]

	catalog, err := openCatalog()
	if err != nil {
		return err
	}
	defer catalog.Close()

	ctx := context.Background()

	if info, err := catalog.GetCollection(ctx, collection); err == nil {
		cmd.Printf("collection %s: embedding model %s (%d dimensions)\n\n",
			info.Name, info.EmbeddingModel, info.Dimensions)
	}

	statuses, err := catalog.DocumentStatuses(ctx, collection)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		cmd.Printf("no documents recorded for collection %s\n", collection)
		return nil
	}

	stageRank := make(map[domain.Stage]int, len(domain.BatchStages()))
	for i, stage := range domain.BatchStages() {
		stageRank[stage] = i
	}

	// Furthest stage reached per document.
	latest := make(map[string]driven.DocumentStatus, len(statuses))
	var docs []string
	for _, s := range statuses {
		cur, seen := latest[s.DocumentID]
		if !seen {
			docs = append(docs, s.DocumentID)
		}
		if !seen || stageRank[s.Stage] > stageRank[cur.Stage] {
			latest[s.DocumentID] = s
		}
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tSTAGE\tSTATE\tERROR")
	for _, doc := range docs {
		s := latest[doc]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", doc, s.Stage, s.State, truncate(s.Error, 60))
	}
	w.Flush()

	runs, err := catalog.Runs(ctx, collection, statusRuns)
	if err != nil {
		return err
	}
	if len(runs) > 0 {
		cmd.Println("\nRecent runs:")
		rw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(rw, "STAGE\tFINISHED\tOK\tSKIP\tFAIL")
		for _, r := range runs {
			fmt.Fprintf(rw, "%s\t%s\t%d\t%d\t%d\n",
				r.Stage, r.FinishedAt.Format("2006-01-02 15:04:05"), r.Succeeded, r.Skipped, r.Failed)
		}
		rw.Flush()
	}
	return nil
}

// truncate shortens s to at most max runes, marking the cut with an
// ellipsis. Counting runes keeps multibyte error text intact.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
