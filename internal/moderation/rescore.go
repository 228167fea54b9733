package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Rescorer recomputes derived fields for every submission with a bounded
// number of workers.
type Rescorer struct {
	gate    *Gate
	workers int
	logger  *zap.Logger
}

type RescoreReport struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

func NewRescorer(g *Gate, workers int, logger *zap.Logger) *Rescorer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rescorer{gate: g, workers: workers, logger: logger}
}

// Run rescores all submissions. Individual failures are counted and logged;
// only listing failures or cancellation abort the run.
func (r *Rescorer) Run(ctx context.Context) (*RescoreReport, error) {
	ids, err := r.gate.store.ListSubmissionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", storeFailure(err))
	}

	var changed, failed atomic.Int64
	p := pool.New().WithContext(ctx).WithMaxGoroutines(r.workers)

	for _, id := range ids {
		p.Go(func(ctx context.Context) error {
			res, err := r.gate.Rescore(ctx, id)
			switch {
			case errors.Is(err, ErrNotFound):
				return nil
			case err != nil:
				failed.Add(1)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			case res.Changed:
				changed.Add(1)
				r.logger.Info("submission rescored",
					zap.String("submission_id", id),
					zap.Int("quality_score", res.QualityScore),
					zap.Bool("hidden", res.HiddenByModeration))
			}
			return nil
		})
	}

	report := &RescoreReport{Scanned: len(ids)}
	err = p.Wait()
	report.Changed = int(changed.Load())
	report.Failed = int(failed.Load())
	if err != nil {
		return report, err
	}

	r.logger.Info("rescore complete",
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("failed", report.Failed))
	return report, nil
}
