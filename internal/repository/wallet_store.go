package repository

import (
	"context"
	"time"

	"walletsystem/internal/model"

	"gorm.io/gorm"
)

// WalletStore 基于 gorm 的 Store 实现
// 把账户、流水、发件箱三个仓储绑定到同一个数据库事务上
type WalletStore struct {
	db          *gorm.DB
	accountRepo *AccountRepository
	ledgerRepo  *LedgerRepository
	outboxRepo  *OutboxRepository
}

var _ Store = (*WalletStore)(nil)

func NewWalletStore(db *gorm.DB) *WalletStore {
	return &WalletStore{
		db:          db,
		accountRepo: NewAccountRepository(db),
		ledgerRepo:  NewLedgerRepository(db),
		outboxRepo:  NewOutboxRepository(db),
	}
}

// Transaction 开启一个原子单元
// 回调返回 nil 提交，返回错误回滚；行锁在提交/回滚时释放
func (s *WalletStore) Transaction(ctx context.Context, fn func(tx TxStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txStore{tx: tx, store: s})
	})
}

func (s *WalletStore) GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	return s.accountRepo.GetByUserID(ctx, userID)
}

func (s *WalletStore) GetAccountByCodAccount(ctx context.Context, codAccount string) (*model.Account, error) {
	return s.accountRepo.GetByCodAccount(ctx, codAccount)
}

func (s *WalletStore) QueryRecords(ctx context.Context, accountID int64, start, end time.Time) ([]*model.LedgerRecord, error) {
	return s.ledgerRepo.QueryByAccountAndRange(ctx, accountID, start, end)
}

// txStore 绑定在单个事务上的 TxStore 实现
type txStore struct {
	tx    *gorm.DB
	store *WalletStore
}

var _ TxStore = (*txStore)(nil)

func (t *txStore) LockAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	return t.store.accountRepo.LockByUserID(ctx, t.tx, userID)
}

func (t *txStore) LockAccountByNumAccount(ctx context.Context, numAccount int) (*model.Account, error) {
	return t.store.accountRepo.LockByNumAccount(ctx, t.tx, numAccount)
}

func (t *txStore) NextNumAccount(ctx context.Context) (int, error) {
	return t.store.accountRepo.NextNumAccount(ctx, t.tx)
}

func (t *txStore) SaveAccount(ctx context.Context, account *model.Account) error {
	return t.store.accountRepo.Save(ctx, t.tx, account)
}

func (t *txStore) CreateAccount(ctx context.Context, account *model.Account) error {
	return t.store.accountRepo.Create(ctx, t.tx, account)
}

func (t *txStore) AppendRecord(ctx context.Context, record *model.LedgerRecord) error {
	return t.store.ledgerRepo.Append(ctx, t.tx, record)
}

func (t *txStore) CreateOutbox(ctx context.Context, msg *model.OutboxMessage) error {
	return t.store.outboxRepo.Create(ctx, t.tx, msg)
}
