package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
	"github.com/kirillkom/catalog-image-sync/internal/core/ports"
)

type SettingsUseCase struct {
	store     ports.SettingsStore
	scheduler ports.Scheduler
}

func NewSettingsUseCase(store ports.SettingsStore, scheduler ports.Scheduler) *SettingsUseCase {
	return &SettingsUseCase{
		store:     store,
		scheduler: scheduler,
	}
}

func (uc *SettingsUseCase) Load(ctx context.Context) (domain.Settings, error) {
	settings, err := uc.store.Load(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return settings.Normalize(), nil
}

// Update applies a partial change. The settings are persisted before the scheduler is
// re-armed, so a failed save leaves both on the previous expression.
func (uc *SettingsUseCase) Update(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	current, err := uc.Load(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	next := current.Apply(patch)

	reschedule := uc.scheduler != nil && next.CronExpression != uc.scheduler.Expression()
	if reschedule {
		if err := uc.scheduler.Validate(next.CronExpression); err != nil {
			return domain.Settings{}, domain.WrapError(domain.ErrInvalidInput, "validate cron", err)
		}
	}

	if err := uc.store.Save(ctx, next); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	if reschedule {
		if err := uc.scheduler.Reschedule(next.CronExpression); err != nil {
			return domain.Settings{}, fmt.Errorf("reschedule: %w", err)
		}
	}
	return next, nil
}

// CronExpression reports the expression the scheduler is currently armed with.
func (uc *SettingsUseCase) CronExpression() string {
	if uc.scheduler == nil {
		return ""
	}
	return uc.scheduler.Expression()
}
