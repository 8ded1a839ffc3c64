package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"walletsystem/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 熔断阈值拉高，只测重试路径
func retryOnlyConfig() config.BusinessConfig {
	return config.BusinessConfig{
		RetryMaxAttempts:     3,
		RetryBackoffBaseMs:   1,
		BreakerMinRequests:   1000,
		BreakerFailureRatio:  0.5,
		BreakerOpenSeconds:   60,
		BreakerWindowSeconds: 60,
	}
}

func TestRetryOnLockContention(t *testing.T) {
	inner, store := newTestExecutor(5 * time.Millisecond)
	a := store.seed("user-1", dec("100"))
	r := NewResilientExecutor(inner, retryOnlyConfig())

	release := store.holdLock(a.ID)
	defer release()

	_, err := r.Deposit(context.Background(), "user-1", dec("5"))
	// 重试耗尽后升级为"稍后再试"，而不是把锁超时裸露给调用方
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.EqualValues(t, 3, atomic.LoadInt32(&store.lockAttempts))
}

func TestRetrySucceedsAfterContention(t *testing.T) {
	inner, store := newTestExecutor(5 * time.Millisecond)
	a := store.seed("user-1", dec("100"))
	r := NewResilientExecutor(inner, retryOnlyConfig())

	release := store.holdLock(a.ID)
	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	// 前几次争用失败，锁释放后重试成功
	deadline := time.Now().Add(2 * time.Second)
	var err error
	for time.Now().Before(deadline) {
		_, err = r.Deposit(context.Background(), "user-1", dec("5"))
		if err == nil {
			break
		}
	}
	require.NoError(t, err)
	assert.True(t, store.committed(a.ID).Balance.Equal(dec("105")))
}

func TestBusinessErrorNotRetried(t *testing.T) {
	inner, store := newTestExecutor(time.Second)
	store.seed("user-1", dec("10"))
	r := NewResilientExecutor(inner, retryOnlyConfig())

	_, err := r.Withdraw(context.Background(), "user-1", dec("50"))
	// 业务拒绝原样返回，不升级、不重试
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.EqualValues(t, 1, atomic.LoadInt32(&store.lockAttempts))
}

func TestValidationErrorPassesThrough(t *testing.T) {
	inner, store := newTestExecutor(time.Second)
	store.seed("user-1", dec("10"))
	r := NewResilientExecutor(inner, retryOnlyConfig())

	_, err := r.Deposit(context.Background(), "user-1", dec("-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrServiceUnavailable)
	assert.Zero(t, atomic.LoadInt32(&store.lockAttempts))
}

func TestBreakerOpensOnInfraFailures(t *testing.T) {
	inner, store := newTestExecutor(5 * time.Millisecond)
	a := store.seed("user-1", dec("100"))
	r := NewResilientExecutor(inner, config.BusinessConfig{
		RetryMaxAttempts:     1,
		RetryBackoffBaseMs:   1,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerOpenSeconds:   60,
		BreakerWindowSeconds: 60,
	})

	release := store.holdLock(a.ID)
	defer release()

	// 连续基础设施失败触发熔断
	for i := 0; i < 2; i++ {
		_, err := r.Deposit(context.Background(), "user-1", dec("5"))
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	}
	attemptsWhenOpened := atomic.LoadInt32(&store.lockAttempts)

	// 熔断打开后直接拒绝，不再触碰存储
	_, err := r.Deposit(context.Background(), "user-1", dec("5"))
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Equal(t, attemptsWhenOpened, atomic.LoadInt32(&store.lockAttempts))
}

func TestBreakerIgnoresBusinessErrors(t *testing.T) {
	inner, store := newTestExecutor(time.Second)
	a := store.seed("user-1", dec("10"))
	r := NewResilientExecutor(inner, config.BusinessConfig{
		RetryMaxAttempts:     1,
		RetryBackoffBaseMs:   1,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerOpenSeconds:   60,
		BreakerWindowSeconds: 60,
	})

	// 大量业务拒绝不应触发熔断
	for i := 0; i < 10; i++ {
		_, err := r.Withdraw(context.Background(), "user-1", dec("999"))
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	}

	_, err := r.Deposit(context.Background(), "user-1", dec("5"))
	require.NoError(t, err)
	assert.True(t, store.committed(a.ID).Balance.Equal(dec("15")))
}
