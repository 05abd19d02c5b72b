package testrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hairizuan-noorazman/ui-harness/logger"
	"github.com/hairizuan-noorazman/ui-harness/storage"
)

// pruneBatch is how many runs Prune loads at a time.
const pruneBatch = 100

// PruneOptions selects the runs Prune removes.
type PruneOptions struct {
	// Before is required: runs that completed before it are removed.
	Before time.Time
	// Status restricts pruning to one final status. Empty means any.
	Status Status
	// DryRun reports what would be removed without removing it.
	DryRun bool
}

// PruneResult counts what Prune removed.
type PruneResult struct {
	Runs   int   `json:"runs"`
	Steps  int64 `json:"steps"`
	Assets int   `json:"assets"`
	Blobs  int   `json:"blobs"`
	DryRun bool  `json:"dry_run"`
}

// Pruner removes old runs together with their step results, artifact rows
// and stored artifact blobs.
type Pruner struct {
	runs   Store
	steps  StepResultStore
	assets AssetStore
	blobs  storage.BlobStorage
	logger logger.Logger
}

// NewPruner creates a pruner. blobs may be nil, in which case stored files
// are left in place.
func NewPruner(runs Store, steps StepResultStore, assets AssetStore, blobs storage.BlobStorage, log logger.Logger) *Pruner {
	if log == nil {
		log = logger.Nop()
	}
	return &Pruner{runs: runs, steps: steps, assets: assets, blobs: blobs, logger: log}
}

// Prune removes the runs selected by opts. It
// stops at the first run whose rows cannot be removed; runs removed before
// that stay removed and are counted in the result.
func (p *Pruner) Prune(ctx context.Context, opts PruneOptions) (PruneResult, error) {
	res := PruneResult{DryRun: opts.DryRun}
	if opts.Before.IsZero() {
		return res, errors.New("prune cutoff is required")
	}
	if opts.Status != "" && !opts.Status.IsFinal() {
		return res, fmt.Errorf("%w: %q is not a final status", ErrInvalidStatus, opts.Status)
	}

	list := ListOptions{Status: opts.Status, CompletedBefore: &opts.Before, Limit: pruneBatch}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		batch, err := p.runs.List(ctx, list)
		if err != nil {
			return res, err
		}

		for _, tr := range batch {
			if opts.DryRun {
				assets, err := p.assets.ListByTestRun(ctx, tr.ID, AssetFilter{})
				if err != nil {
					return res, err
				}
				res.Runs++
				res.Assets += len(assets)
				continue
			}
			if err := p.pruneRun(ctx, tr, &res); err != nil {
				return res, fmt.Errorf("failed to prune run %s: %w", tr.ID, err)
			}
		}

		if len(batch) < pruneBatch {
			break
		}
		// removed runs drop out of the listing
		if opts.DryRun {
			list.Offset += len(batch)
		}
	}

	p.logger.Info(ctx, "run history pruned", map[string]interface{}{
		"before":  opts.Before.UTC().Format(time.RFC3339),
		"status":  string(opts.Status),
		"runs":    res.Runs,
		"steps":   res.Steps,
		"assets":  res.Assets,
		"blobs":   res.Blobs,
		"dry_run": opts.DryRun,
	})
	return res, nil
}

func (p *Pruner) pruneRun(ctx context.Context, tr *TestRun, res *PruneResult) error {
	removed, err := p.assets.DeleteByTestRun(ctx, tr.ID)
	if err != nil {
		return err
	}
	res.Assets += len(removed)

	if p.blobs != nil {
		for _, a := range removed {
			err := p.blobs.Delete(ctx, a.AssetPath)
			switch {
			case err == nil:
				res.Blobs++
			case errors.Is(err, storage.ErrFileNotFound):
			default:
				p.logger.Warn(ctx, "failed to delete artifact file", map[string]interface{}{
					"test_run_id": tr.ID.String(),
					"path":        a.AssetPath,
					"error":       err.Error(),
				})
			}
		}
	}

	n, err := p.steps.DeleteByTestRun(ctx, tr.ID)
	if err != nil {
		return err
	}
	res.Steps += n

	if err := p.runs.Delete(ctx, tr.ID); err != nil {
		return err
	}
	res.Runs++
	return nil
}
