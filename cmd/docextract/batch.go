package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/ingest"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

var (
	batchType       string
	batchWorkers    int
	batchOutDir     string
	batchFormat     string
	batchShowHidden bool
	watchDebounce   time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract every PDF and image under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatch,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Extract documents as they appear under a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	for _, c := range []*cobra.Command{batchCmd, watchCmd} {
		docTypeFlag(c, &batchType)
		c.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "concurrent documents (default QUEUE_WORKERS)")
		c.Flags().StringVar(&batchOutDir, "out-dir", "", "also export each saved extraction here")
		c.Flags().StringVarP(&batchFormat, "format", "f", "json", "export format for --out-dir")
		_ = c.MarkFlagRequired("type")
		rootCmd.AddCommand(c)
	}
	batchCmd.Flags().BoolVar(&batchShowHidden, "hidden", false, "include hidden files and directories")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", time.Second, "wait this long after the last write before extracting")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docType, format, err := batchFlags()
	if err != nil {
		return err
	}
	paths, stats, err := ingest.Scan(args[0], !batchShowHidden)
	if err != nil {
		return err
	}
	logger.Info("batch.scan.ok", "dir", args[0], "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	q := a.NewQueue(batchWorkers)
	for _, p := range paths {
		if err := q.Enqueue(ctx, async.NewJob(pipeline.Request{UserID: userID, Path: p, DocumentType: docType}, "")); err != nil {
			logger.Warn("batch.enqueue.failed", "path", p, "error", err)
			break
		}
	}
	q.Shutdown(ctx)

	return summarize(cmd, a, q.Jobs(), format)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docType, format, err := batchFlags()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:    []string{args[0]},
		Debounce: watchDebounce,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	logger.Info("watch.started", "dir", args[0], "document_type", docType)

	q := a.NewQueue(batchWorkers)
	for events != nil {
		select {
		case p, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := q.Enqueue(ctx, async.NewJob(pipeline.Request{UserID: userID, Path: p, DocumentType: docType}, "")); err != nil {
				logger.Warn("watch.enqueue.failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok {
				logger.Warn("watch.error", "error", err)
			} else {
				errs = nil
			}
		}
	}
	// A second interrupt abandons queued work.
	drain, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	q.Shutdown(drain)

	return summarize(cmd, a, q.Jobs(), format)
}

func batchFlags() (constants.DocumentType, export.Format, error) {
	docType, err := parseDocType(batchType)
	if err != nil {
		return "", "", err
	}
	format, err := parseFormat(batchFormat)
	if err != nil {
		return "", "", err
	}
	return docType, format, nil
}

// summarize prints per-job outcomes and exports saved extractions to
// --out-dir when set.
func summarize(cmd *cobra.Command, a *app.App, jobs []async.JobState, format export.Format) error {
	w := cmd.OutOrStdout()
	var done, failed, review, exported int
	for _, j := range jobs {
		switch j.Status {
		case constants.JobStatusDone:
			done++
			if j.NeedsReview {
				review++
			}
			fmt.Fprintf(w, "%-8s %s %s\n", j.Status, j.SourceName, j.ExtractionID)
		default:
			failed++
			fmt.Fprintf(w, "%-8s %s %s\n", j.Status, j.SourceName, j.Error)
		}

		if batchOutDir == "" || j.Status != constants.JobStatusDone {
			continue
		}
		file, err := a.Exporter.Export(cmd.Context(), userID, "", j.ExtractionID, format)
		if err != nil {
			logger.Warn("batch.export.failed", "extraction_id", j.ExtractionID, "error", err)
			continue
		}
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(batchOutDir, file.Name), file.Data, 0o644); err != nil {
			return err
		}
		exported++
	}

	fmt.Fprintf(w, "Batch processing complete!\n")
	fmt.Fprintf(w, "- Documents: %d\n", len(jobs))
	fmt.Fprintf(w, "- Extracted: %d (needs review %d)\n", done, review)
	fmt.Fprintf(w, "- Failures: %d\n", failed)
	if batchOutDir != "" {
		fmt.Fprintf(w, "- Exported: %d to %s\n", exported, batchOutDir)
	}
	return nil
}
