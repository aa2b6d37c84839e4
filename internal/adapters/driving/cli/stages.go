package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
)

var stageForce bool

var extractCmd = &cobra.Command{
	Use:   "extract <collection>",
	Short: "Extract text from documents in the input directory",
	Long: `Extracts text from every supported document in the input directory.

PDFs with a text layer are read directly; scanned PDFs and images fall
back to OCR via tesseract. Extracted text is stored per document, with
pages joined by a page break marker.

Examples:
  corpus extract contracts
  corpus extract contracts --force`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunE(domain.StageExtract),
}

var cleanseCmd = &cobra.Command{
	Use:   "cleanse <collection>",
	Short: "Repair extracted text with the cleansing model",
	Long: `Passes each extracted text through the configured LLM to fix OCR
artifacts, rejoin broken lines and strip page furniture. Documents whose
cleansing fails after retries are marked failed; their raw text is never
passed downstream.`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunE(domain.StageCleanse),
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <collection>",
	Short: "Segment cleansed text into overlapping chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunE(domain.StageChunk),
}

var embedCmd = &cobra.Command{
	Use:   "embed <collection>",
	Short: "Embed chunks with the configured embedding model",
	Args:  cobra.ExactArgs(1),
	RunE:  stageRunE(domain.StageEmbed),
}

var indexCmd = &cobra.Command{
	Use:   "index <collection>",
	Short: "Upsert embedded chunks into the vector index",
	Long: `Upserts each document's embedding records into the local vector
index, keyed by chunk ID. Re-indexing is idempotent: unchanged chunks
are detected by content hash and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: stageRunE(domain.StageIndex),
}

func init() {
	for _, cmd := range []*cobra.Command{extractCmd, cleanseCmd, chunkCmd, embedCmd, indexCmd} {
		cmd.Flags().BoolVar(&stageForce, "force", false, "reprocess documents even if up to date")
		rootCmd.AddCommand(cmd)
	}
}

// stageRunE builds the RunE for a single stage command.
func stageRunE(stage domain.Stage) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		collection := args[0]

		deps, err := buildPipeline(collection)
		if err != nil {
			return err
		}
		defer deps.close()

		report, err := deps.svc.RunStage(context.Background(), collection, stage, stageForce)
		if err != nil {
			return fmt.Errorf("%s failed: %w", stage, err)
		}

		printReport(cmd, report)
		if report.Partial() {
			return fmt.Errorf("%w: %d of %d documents failed",
				domain.ErrPartialFailure, report.Failed, report.Succeeded+report.Skipped+report.Failed)
		}
		return nil
	}
}

// printReport renders one stage report.
func printReport(cmd *cobra.Command, report *domain.StageReport) {
	cmd.Printf("%s: %d processed, %d skipped, %d failed\n",
		report.Stage, report.Succeeded, report.Skipped, report.Failed)

	if report.Index != nil {
		cmd.Printf("  index: %d inserted, %d updated, %d unchanged\n",
			report.Index.Inserted, report.Index.Updated, report.Index.Skipped)
	}
	for _, failure := range report.Failures {
		cmd.Printf("  failed %s: %s\n", failure.DocumentID, failure.Reason)
	}
}
