package service

import (
	"context"
	"errors"
	"log"
	"time"

	"walletsystem/internal/model"
	"walletsystem/internal/repository"
	"walletsystem/internal/validation"

	"github.com/shopspring/decimal"
)

// ProvisionLock 开户锁
// 账号序号是全局递增的，跨实例部署时用 Redis 锁把分配过程串行化
type ProvisionLock interface {
	Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error
	Unlock(ctx context.Context) error
}

// WalletService 开户与查询
type WalletService struct {
	store   repository.Store
	newLock func(userID string) ProvisionLock
}

func NewWalletService(store repository.Store, newLock func(userID string) ProvisionLock) *WalletService {
	return &WalletService{
		store:   store,
		newLock: newLock,
	}
}

// CreateWallet 开户
// 账号格式 "{年份}.{八位序号}-01"，序号分配和余额初始化在同一个事务里，
// 不存在"有账户没账号"或"余额未初始化"的可见状态
func (s *WalletService) CreateWallet(ctx context.Context, userID string) (*model.Account, error) {
	if err := validation.ValidateProvision(userID); err != nil {
		return nil, err
	}

	plock := s.newLock(userID)
	if err := plock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		log.Printf("[Wallet] 开户锁获取失败: userID=%s err=%v", userID, err)
		return nil, ErrServiceUnavailable
	}
	defer plock.Unlock(ctx)

	// 拿到锁后查重，数据库唯一索引兜底
	if _, err := s.store.GetAccountByUserID(ctx, userID); err == nil {
		return nil, repository.ErrDuplicateAccount
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	var account *model.Account
	err := s.store.Transaction(ctx, func(tx repository.TxStore) error {
		num, err := tx.NextNumAccount(ctx)
		if err != nil {
			return err
		}

		account = &model.Account{
			UserID:     userID,
			NumAccount: num,
			CodAccount: model.FormatCodAccount(time.Now().Year(), num),
			Balance:    decimal.Zero,
		}
		return tx.CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Wallet] 开户成功: userID=%s codAccount=%s", userID, account.CodAccount)
	return account, nil
}

// GetBalance 查询余额
func (s *WalletService) GetBalance(ctx context.Context, userID string) (*model.Account, error) {
	return s.store.GetAccountByUserID(ctx, userID)
}

// GetStatement 查询对账单
// 区间为 [startDate 当天零点, endDate 次日零点)，按创建时间升序；
// 区间内没有流水时返回空列表
func (s *WalletService) GetStatement(ctx context.Context, userID string, startDate, endDate time.Time) ([]*model.LedgerRecord, error) {
	account, err := s.store.GetAccountByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := startDate.Truncate(24 * time.Hour)
	end := endDate.Truncate(24 * time.Hour).AddDate(0, 0, 1)
	return s.store.QueryRecords(ctx, account.ID, start, end)
}
