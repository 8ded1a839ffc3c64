package service

import (
	"context"
	"errors"
	"log"
	"time"

	"walletsystem/internal/config"
	"walletsystem/internal/repository"
	"walletsystem/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

// ============================================================================
// 弹性包装器：重试 + 熔断
// ============================================================================
//
// 只包住存款/取款/转账三个操作。规则：
// 1. 只有锁争用（ErrLockTimeout）才重试，指数退避，次数有上限；
//    重试耗尽后升级为 ErrServiceUnavailable
// 2. 业务拒绝（校验失败、账户不存在、余额不足）原样返回，
//    不重试，也不计入熔断统计
// 3. 基础设施错误在滚动窗口内失败率超阈值时熔断器打开，
//    新请求直接返回 ErrServiceUnavailable，不再触碰存储；
//    冷却后进入半开状态放行探测请求
//
// 调用方因此总能区分"重试也没用"（余额不足）和"稍后再试"（服务降级）
//
// ============================================================================

// ResilientExecutor 带重试和熔断的执行器
type ResilientExecutor struct {
	inner       *Executor
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	backoffBase time.Duration
}

func NewResilientExecutor(inner *Executor, cfg config.BusinessConfig) *ResilientExecutor {
	settings := gobreaker.Settings{
		Name:     "wallet-executor",
		Interval: time.Duration(cfg.BreakerWindowSeconds) * time.Second,
		Timeout:  time.Duration(cfg.BreakerOpenSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[Resilience] 熔断器状态变更: %s -> %s", from, to)
		},
	}

	return &ResilientExecutor{
		inner:       inner,
		breaker:     gobreaker.NewCircuitBreaker(settings),
		maxAttempts: cfg.RetryMaxAttempts,
		backoffBase: cfg.RetryBackoffBase(),
	}
}

func (r *ResilientExecutor) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*OperationResult, error) {
	return r.execute(ctx, func() (*OperationResult, error) {
		return r.inner.Deposit(ctx, userID, amount)
	})
}

func (r *ResilientExecutor) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*OperationResult, error) {
	return r.execute(ctx, func() (*OperationResult, error) {
		return r.inner.Withdraw(ctx, userID, amount)
	})
}

func (r *ResilientExecutor) Transfer(ctx context.Context, senderUserID, receiverCodAccount string, amount decimal.Decimal) (*OperationResult, error) {
	return r.execute(ctx, func() (*OperationResult, error) {
		return r.inner.Transfer(ctx, senderUserID, receiverCodAccount, amount)
	})
}

func (r *ResilientExecutor) execute(ctx context.Context, op func() (*OperationResult, error)) (*OperationResult, error) {
	// 业务拒绝借这个变量绕过熔断器，向熔断器返回 nil 避免计入失败
	var bizErr error

	res, err := r.breaker.Execute(func() (interface{}, error) {
		result, err := r.withRetry(ctx, op)
		if err != nil && !isInfraError(err) {
			bizErr = err
			return nil, nil
		}
		return result, err
	})

	if bizErr != nil {
		return nil, bizErr
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrServiceUnavailable
		}
		if errors.Is(err, repository.ErrLockTimeout) {
			// 重试已耗尽
			return nil, ErrServiceUnavailable
		}
		return nil, err
	}
	return res.(*OperationResult), nil
}

// withRetry 只对锁争用做有限次重试，其余错误立刻返回
func (r *ResilientExecutor) withRetry(ctx context.Context, op func() (*OperationResult, error)) (*OperationResult, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoffBase << (attempt - 1)):
			}
			log.Printf("[Resilience] 锁争用重试: attempt=%d", attempt+1)
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, repository.ErrLockTimeout) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// isInfraError 判断是否属于基础设施错误
// 只有基础设施错误计入熔断统计和 ServiceUnavailable 升级
func isInfraError(err error) bool {
	switch {
	case validation.IsValidationError(err),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrSenderNotFound),
		errors.Is(err, ErrReceiverNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrDuplicateAccount):
		return false
	}
	return true
}
