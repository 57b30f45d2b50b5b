package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

// BatchReconciler upserts deduplicated records, one statement per branch.
// Branches are independent failure domains: a failed branch is reported and counts zero,
// while rows already committed by the other branch stay committed.
type BatchReconciler struct {
	store    ports.ImageStore
	observer ports.RunObserver
}

func NewBatchReconciler(store ports.ImageStore, observer ports.RunObserver) *BatchReconciler {
	if observer == nil {
		observer = noopObserver{}
	}
	return &BatchReconciler{
		store:    store,
		observer: observer,
	}
}

func (r *BatchReconciler) Reconcile(ctx context.Context, standard, ambience []domain.CandidateRecord) domain.ReconcileResult {
	var result domain.ReconcileResult

	n, failure := r.upsertBranch(ctx, domain.BranchStandard, standard, r.store.UpsertStandard)
	result.UpdatedStandard = n
	if failure != nil {
		result.Failures = append(result.Failures, *failure)
	}

	n, failure = r.upsertBranch(ctx, domain.BranchAmbience, ambience, r.store.UpsertAmbience)
	result.UpdatedAmbience = n
	if failure != nil {
		result.Failures = append(result.Failures, *failure)
	}
	return result
}

func (r *BatchReconciler) upsertBranch(
	ctx context.Context,
	branch domain.Branch,
	records []domain.CandidateRecord,
	upsert func(context.Context, []domain.CandidateRecord) (int, error),
) (int, *domain.BranchFailure) {
	if len(records) == 0 {
		return 0, nil
	}

	n, err := upsert(ctx, records)
	if err != nil {
		slog.Error("branch_upsert_failed",
			"branch", string(branch),
			"rows", len(records),
			"error", err,
		)
		r.observer.BranchFailed(branch)
		return 0, &domain.BranchFailure{Branch: branch, Rows: len(records), Error: err.Error()}
	}
	r.observer.BranchUpserted(branch, n)
	return n, nil
}

type noopObserver struct{}

func (noopObserver) RunStarted(string)                        {}
func (noopObserver) RunFinished(string, time.Duration, error) {}
func (noopObserver) BranchUpserted(domain.Branch, int)        {}
func (noopObserver) BranchFailed(domain.Branch)               {}
func (noopObserver) DirectoriesRecorded(int)                  {}
