package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/catalog"
	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// ImageBatchUseCase reconciles image rows posted by an external traversal.
type ImageBatchUseCase struct {
	reconciler *BatchReconciler
	now        func() time.Time
}

func NewImageBatchUseCase(reconciler *BatchReconciler) *ImageBatchUseCase {
	return &ImageBatchUseCase{
		reconciler: reconciler,
		now:        time.Now,
	}
}

func (uc *ImageBatchUseCase) UpsertBatch(ctx context.Context, rows []domain.RawRow) (domain.ReconcileResult, error) {
	if len(rows) == 0 {
		return domain.ReconcileResult{}, nil
	}

	now := uc.now()
	records := make([]domain.CandidateRecord, 0, len(rows))
	for _, raw := range rows {
		rec, ok := catalog.Build(raw, domain.Context{}, now)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	standard, ambience := catalog.SplitByBranch(records)
	return uc.reconciler.Reconcile(ctx, catalog.DedupeLatest(standard), catalog.DedupeLatest(ambience)), nil
}
