package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"marketbot/internal/service/inventory/domain"
)

// GormLedgerStore 把账本保存为 ledger_products/ledger_variants 两张表。
// Save 在一个事务里整体替换所有行，其他连接只能看到替换前或替换后的数据集。
type GormLedgerStore struct {
	db *gorm.DB
}

func NewGormLedgerStore(db *gorm.DB) *GormLedgerStore {
	return &GormLedgerStore{db: db}
}

func (s *GormLedgerStore) Load(ctx context.Context) (domain.Dataset, error) {
	var models []ProductModel
	err := s.db.WithContext(ctx).
		Preload("Variations", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("owner").Order("position").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "ledger: load products")
	}
	return domain.NormalizeDataset(toDomainDataset(models)), nil
}

func (s *GormLedgerStore) Save(ctx context.Context, ds domain.Dataset) error {
	models := toProductModels(ds)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&VariantModel{}).Error; err != nil {
			return errors.Wrap(err, "ledger: clear variants")
		}
		if err := tx.Where("1 = 1").Delete(&ProductModel{}).Error; err != nil {
			return errors.Wrap(err, "ledger: clear products")
		}
		if len(models) == 0 {
			return nil
		}
		// Create 会连同 Variations 一起插入
		if err := tx.CreateInBatches(&models, 100).Error; err != nil {
			return errors.Wrap(err, "ledger: insert products")
		}
		return nil
	})
}
