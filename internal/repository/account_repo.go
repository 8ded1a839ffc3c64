package repository

import (
	"context"
	"database/sql"
	"errors"

	"walletsystem/internal/model"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL 错误码
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// translateLockErr 把 MySQL 的锁等待超时/死锁翻译成 ErrLockTimeout
// 两者都属于争用类失败，统一交给执行器的重试策略处理
func translateLockErr(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrLockWaitTimeout, mysqlErrDeadlock:
			return ErrLockTimeout
		}
	}
	return err
}

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(account).Error
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByCodAccount(ctx context.Context, codAccount string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("cod_account = ?", codAccount).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// LockByUserID 按用户ID取账户并加排他行锁
// 锁由外层事务持有，直到提交或回滚才释放
func (r *AccountRepository) LockByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, translateLockErr(err)
	}
	return &account, nil
}

// LockByNumAccount 按账户序号加排他行锁
// 转账需要锁两个账户，统一按序号升序加锁，避免对向转账互相等待
func (r *AccountRepository) LockByNumAccount(ctx context.Context, tx *gorm.DB, numAccount int) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("num_account = ?", numAccount).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, translateLockErr(err)
	}
	return &account, nil
}

// NextNumAccount 分配下一个账户序号
// MAX(num_account) 加排他锁，并发开户在这里被串行化，序号不会重复
func (r *AccountRepository) NextNumAccount(ctx context.Context, tx *gorm.DB) (int, error) {
	var max sql.NullInt64
	err := tx.WithContext(ctx).
		Raw("SELECT MAX(num_account) FROM account FOR UPDATE").
		Scan(&max).Error
	if err != nil {
		return 0, translateLockErr(err)
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// Save 持久化余额变动
// 条件里带版本号做二次校验：在行锁纪律下不应失败，一旦失败说明锁没拿住
func (r *AccountRepository) Save(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance": account.Balance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return translateLockErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLockTimeout
	}

	account.Version++
	return nil
}
