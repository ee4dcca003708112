package application

import (
	"context"

	"marketbot/internal/pkg/logger"
	"marketbot/internal/service/inventory/domain"
)

const opReplace = "replace_dataset"

// ReplaceDataset 在临界区内整体替换账本，供运维导入使用。
// 已有订单的预占不会被迁移，导入后应执行一次 Reconcile。
func (s *Service) ReplaceDataset(ctx context.Context, ds domain.Dataset) error {
	ctx, span := s.tracer.Start(ctx, "app.ReplaceDataset")
	defer span.End()

	ds = domain.NormalizeDataset(ds)
	err := s.criticalSection(ctx, opReplace, func(sec *section) error {
		sec.ds = ds
		return sec.save()
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Info().Strs("owners", ds.Owners()).Msg("ledger dataset replaced")
	return nil
}
