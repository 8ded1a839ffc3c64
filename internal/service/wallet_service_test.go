package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"walletsystem/internal/repository"
	"walletsystem/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopLock 测试用开户锁：单进程测试不需要 Redis
type nopLock struct{}

func (nopLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	return nil
}
func (nopLock) Unlock(ctx context.Context) error { return nil }

func newTestWalletService(store repository.Store) *WalletService {
	return NewWalletService(store, func(userID string) ProvisionLock { return nopLock{} })
}

func TestCreateWallet(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)

	year := time.Now().Year()

	a, err := s.CreateWallet(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d.00000001-01", year), a.CodAccount)
	assert.Equal(t, 1, a.NumAccount)
	assert.True(t, a.Balance.Equal(decimal.Zero), "新账户余额必须初始化为 0")

	// 序号单调递增
	b, err := s.CreateWallet(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d.00000002-01", year), b.CodAccount)
}

func TestCreateWalletDuplicate(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)

	_, err := s.CreateWallet(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = s.CreateWallet(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrDuplicateAccount)
}

func TestCreateWalletValidation(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)

	_, err := s.CreateWallet(context.Background(), "")
	assert.True(t, validation.IsValidationError(err))
}

// TestCreateWalletConcurrent 并发开户不允许出现重复序号
func TestCreateWalletConcurrent(t *testing.T) {
	store := newMemStore(10 * time.Second)
	s := newTestWalletService(store)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreateWallet(context.Background(), fmt.Sprintf("user-%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		a, err := store.GetAccountByUserID(context.Background(), fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
		assert.False(t, seen[a.NumAccount], "账户序号 %d 重复", a.NumAccount)
		seen[a.NumAccount] = true
	}
}

func TestGetBalance(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)
	store.seed("user-1", decimal.NewFromInt(42))

	a, err := s.GetBalance(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(decimal.NewFromInt(42)))

	_, err = s.GetBalance(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestGetStatement(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)
	e := NewExecutor(store, "wallet.ledger.events")
	store.seed("user-1", decimal.Zero)

	_, err := e.Deposit(context.Background(), "user-1", dec("100"))
	require.NoError(t, err)
	_, err = e.Withdraw(context.Background(), "user-1", dec("30"))
	require.NoError(t, err)

	now := time.Now()

	// 覆盖今天的区间：两条流水，按时间升序
	records, err := s.GetStatement(context.Background(), "user-1", now.AddDate(0, 0, -1), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.Before(records[1].CreatedAt) || records[0].CreatedAt.Equal(records[1].CreatedAt))

	// 没有流水的区间：空列表而不是错误
	records, err = s.GetStatement(context.Background(), "user-1", now.AddDate(0, 0, -10), now.AddDate(0, 0, -5))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetStatementAccountNotFound(t *testing.T) {
	store := newMemStore(time.Second)
	s := newTestWalletService(store)

	_, err := s.GetStatement(context.Background(), "ghost", time.Now(), time.Now())
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}
