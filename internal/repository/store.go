package repository

import (
	"context"
	"errors"
	"time"

	"walletsystem/internal/model"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrLockTimeout      = errors.New("账户行锁等待超时")
	ErrDuplicateAccount = errors.New("该用户已有账户，每人只能开一个")
)

// TxStore 原子单元内可用的存储操作
// 所有写操作和行锁都必须通过它，保证余额变动、流水、事件在同一个事务里提交
type TxStore interface {
	// LockAccountByUserID 按用户ID取账户并加排他行锁（SELECT ... FOR UPDATE）
	// 锁持有到事务提交或回滚；等待超过配置上限返回 ErrLockTimeout
	LockAccountByUserID(ctx context.Context, userID string) (*model.Account, error)
	// LockAccountByNumAccount 按账户序号加锁，转账按序号升序依次加锁以避免死锁
	LockAccountByNumAccount(ctx context.Context, numAccount int) (*model.Account, error)
	// NextNumAccount 分配下一个账户序号，并发调用绝不重复
	NextNumAccount(ctx context.Context) (int, error)
	// SaveAccount 持久化余额变动，版本号 +1
	SaveAccount(ctx context.Context, account *model.Account) error
	// CreateAccount 开户，用户重复开户返回 ErrDuplicateAccount
	CreateAccount(ctx context.Context, account *model.Account) error
	// AppendRecord 追加账本流水
	AppendRecord(ctx context.Context, record *model.LedgerRecord) error
	// CreateOutbox 写入待投递事件
	CreateOutbox(ctx context.Context, msg *model.OutboxMessage) error
}

// Store 执行器依赖的存储门面
// Transaction 内部的回调拿到的是绑定在同一事务上的 TxStore，
// 回调返回错误则整体回滚，所有行锁随之释放
type Store interface {
	Transaction(ctx context.Context, fn func(tx TxStore) error) error

	// 以下为无锁读，不参与原子单元
	GetAccountByUserID(ctx context.Context, userID string) (*model.Account, error)
	GetAccountByCodAccount(ctx context.Context, codAccount string) (*model.Account, error)
	QueryRecords(ctx context.Context, accountID int64, start, end time.Time) ([]*model.LedgerRecord, error)
}
