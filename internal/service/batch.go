package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/threadlens/internal/analysis"
	"github.com/hugo-lorenzo-mato/threadlens/internal/core"
)

// BatchItem is the outcome for one input of a batch run.
type BatchItem struct {
	Path   string           `json:"path"`
	Result *analysis.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
	Code   string           `json:"code,omitempty"`

	err error
}

// Err returns the failure for this input, if any.
func (i *BatchItem) Err() error {
	return i.err
}

// Deadlocked reports whether the input was analyzed and holds a deadlock.
func (i *BatchItem) Deadlocked() bool {
	return i.Result != nil && i.Result.HasDeadlocks()
}

// BatchReport holds one item per input, in argument order.
type BatchReport struct {
	Items []BatchItem `json:"items"`
}

// Failed counts inputs that could not be analyzed.
func (r *BatchReport) Failed() int {
	n := 0
	for i := range r.Items {
		if r.Items[i].err != nil {
			n++
		}
	}
	return n
}

// Deadlocked counts inputs holding at least one deadlock.
func (r *BatchReport) Deadlocked() int {
	n := 0
	for i := range r.Items {
		if r.Items[i].Deadlocked() {
			n++
		}
	}
	return n
}

// Batch analyzes every path concurrently, bounded by the configured
// concurrency. A failing input, including one that panics, is recorded on
// its item and does not stop the others.
func (s *Service) Batch(ctx context.Context, paths []string) *BatchReport {
	report := &BatchReport{Items: make([]BatchItem, len(paths))}

	limit := s.cfg.Batch.Concurrency
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		g.Go(func() error {
			item := &report.Items[i]
			item.Path = path
			item.Result, item.err = s.batchOne(gctx, path)
			if item.err != nil {
				item.Error = item.err.Error()
				item.Code = core.GetCode(item.err)
				s.logger.WithDump(displayName(path)).Error("analysis failed", "error", item.err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("batch complete",
		"inputs", len(paths),
		"failed", report.Failed(),
		"deadlocked", report.Deadlocked(),
	)
	return report
}

func (s *Service) batchOne(ctx context.Context, path string) (res *analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = core.ErrInternal(core.CodePanic, fmt.Sprintf("analyzing %s: panic: %v", displayName(path), r)).
				WithDetail("path", path)
		}
	}()

	a, err := s.Analyze(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Result, nil
}
