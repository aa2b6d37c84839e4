package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/corpus-cli/internal/core/domain"
	"github.com/custodia-labs/corpus-cli/internal/logger"
)

var (
	runForce bool
	runWatch bool
)

// watchDebounce coalesces bursts of filesystem events into one run.
const watchDebounce = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run <collection>",
	Short: "Run the full ingestion pipeline",
	Long: `Runs all ingestion stages in order: extract, cleanse, chunk, embed,
index. Documents that fail one stage are reported and simply absent from
later stages; the run continues with the rest.

With --watch, the input directory is monitored and the pipeline re-runs
whenever documents are added or changed.

Examples:
  corpus run contracts
  corpus run contracts --force
  corpus run contracts --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "reprocess documents even if up to date")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "keep watching the input directory and re-run on changes")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	collection := args[0]

	deps, err := buildPipeline(collection)
	if err != nil {
		return err
	}
	defer deps.close()

	ctx := context.Background()

	if err := runOnce(ctx, cmd, deps, collection, runForce); err != nil && !runWatch {
		return err
	}

	if !runWatch {
		return nil
	}
	return watchAndRun(ctx, cmd, deps, collection)
}

// runOnce executes all stages and reports partial failure.
func runOnce(ctx context.Context, cmd *cobra.Command, deps *pipelineDeps, collection string, force bool) error {
	reports, err := deps.svc.Run(ctx, collection, force)
	for i := range reports {
		printReport(cmd, &reports[i])
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		failed += r.Failed
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d document stages failed", domain.ErrPartialFailure, failed)
	}
	return nil
}

// watchAndRun re-runs the pipeline when the input directory changes,
// until interrupted.
func watchAndRun(ctx context.Context, cmd *cobra.Command, deps *pipelineDeps, collection string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Pipeline.InputDir); err != nil {
		return fmt.Errorf("watching %s: %w", cfg.Pipeline.InputDir, err)
	}
	cmd.Printf("watching %s for changes (ctrl-c to stop)\n", cfg.Pipeline.InputDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watch: %s", event)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(watchDebounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := runOnce(ctx, cmd, deps, collection, false); err != nil {
				cmd.PrintErrf("run failed: %v\n", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-sigCh:
			cmd.Println("stopping watch")
			return nil
		}
	}
}
