package repository

import (
	"context"
	"time"

	"walletsystem/internal/model"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Append 追加一条流水，必须在外层事务内调用
func (r *LedgerRepository) Append(ctx context.Context, tx *gorm.DB, record *model.LedgerRecord) error {
	return tx.WithContext(ctx).Create(record).Error
}

// QueryByAccountAndRange 查询账户在 [start, end) 内的流水，按创建时间升序
// 区间内没有流水时返回空切片
func (r *LedgerRepository) QueryByAccountAndRange(ctx context.Context, accountID int64, start, end time.Time) ([]*model.LedgerRecord, error) {
	var records []*model.LedgerRecord
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND created_at >= ? AND created_at < ?", accountID, start, end).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}
