package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 账户余额靠数据库行锁保护，这里的锁只用在开户场景：
// 账号序号是全局递增的，多实例部署时两个实例同时开户，
// 必须有人先拿到这把锁才能进入"取最大序号+1"的分配流程。
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（持有者崩溃时锁自动释放）
//   - value: 持有者标识，释放时验证，防止误删别人的锁
//
// 释放锁：Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// 先校验 value 再删除：锁过期后被别人拿走时，不能把别人的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewProvisionLock 创建开户锁
// 开户是低频操作，全局一把锁即可；value 用用户ID便于追踪持有者
func NewProvisionLock(client *redis.Client, userID string, ttl time.Duration) *DistributedLock {
	key := "wallet:lock:provision"
	return NewDistributedLock(client, key, fmt.Sprintf("provision:%s", userID), ttl)
}
