package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ianpcook/agent-crm/internal/extract"
	"github.com/ianpcook/agent-crm/internal/model"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>...",
	Short: "Extract and store plans for many files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sourceFlag, _ := cmd.Flags().GetString("source")
		source, err := model.ParseSourceType(sourceFlag)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrent
		}

		results := processBatch(ctx, args, source, concurrency, func(ctx context.Context, input string, plan *model.ExtractionPlan) (string, error) {
			rec, err := st.SavePlan(ctx, input, plan)
			if err != nil {
				return "", err
			}
			return rec.ID, nil
		})

		formatBatchResults(cmd.OutOrStdout(), results)

		var failed int
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("batch: %d of %d files failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringP("source", "s", "auto", "source type applied to every file")
	batchCmd.Flags().Int("concurrency", 0, "files processed at once (default from config)")
	rootCmd.AddCommand(batchCmd)
}

// batchResult is the outcome for one input file.
type batchResult struct {
	File       string
	PlanID     string
	SourceType model.SourceType
	Actions    int
	Err        error
}

// saveFunc stores a plan and returns its ID.
type saveFunc func(ctx context.Context, input string, plan *model.ExtractionPlan) (string, error)

// processBatch extracts a plan from each file with at most concurrency
// files in flight. Results are returned in input order; a failing file does
// not stop the others.
func processBatch(ctx context.Context, files []string, source model.SourceType, concurrency int, save saveFunc) []batchResult {
	results := make([]batchResult, len(files))
	if len(files) == 0 {
		return results
	}

	zap.L().Info("processing batch",
		zap.Int("files", len(files)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	var succeeded, failed atomic.Int64

	for i, file := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", file))
			res := &results[i]
			res.File = file

			if err := gctx.Err(); err != nil {
				res.Err = err
				failed.Add(1)
				return nil
			}

			data, err := os.ReadFile(file)
			if err != nil {
				res.Err = eris.Wrapf(err, "read %s", file)
				failed.Add(1)
				log.Error("read failed", zap.Error(err))
				return nil
			}
			text := extract.Normalize(string(data))
			if err := extract.ValidateInput(text); err != nil {
				res.Err = err
				failed.Add(1)
				log.Warn("skipping empty file")
				return nil
			}

			plan := extract.Extract(text, source)
			res.SourceType = plan.SourceType
			res.Actions = len(plan.SuggestedActions)

			id, err := save(gctx, text, plan)
			if err != nil {
				res.Err = eris.Wrap(err, "save plan")
				failed.Add(1)
				log.Error("save failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			res.PlanID = id
			succeeded.Add(1)
			log.Debug("plan saved", zap.String("plan_id", id))
			return nil
		})
	}

	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

// formatBatchResults writes one row per file to out.
func formatBatchResults(out io.Writer, results []batchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FILE\tPLAN\tSOURCE\tACTIONS\tERROR")
	for _, r := range results {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.File,
			truncateID(r.PlanID),
			r.SourceType,
			r.Actions,
			errMsg,
		)
	}
	_ = w.Flush()
}
