package port

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockBusy 表示锁当前被其他持有者占用。
	ErrLockBusy = errors.New("distributed lock is held by another owner")

	// ErrLockUnavailable 表示锁后端不可达。编排器对此失败开放：
	// 直接走事务行锁路径，分布式锁只是降低争用的优化，从不是正确性来源。
	ErrLockUnavailable = errors.New("distributed lock backend unavailable")
)

// DistributedLocker 是跨实例互斥原语的出站端口。
// 语义要求：Acquire 必须是带过期时间的原子 set-if-absent，返回本次持有者
// 的唯一 token；Release 只在 token 匹配时删除，不匹配是 no-op 而非错误，
// 避免慢持有者在 TTL 过期、锁被他人重新获取之后误删别人的锁。
type DistributedLocker interface {
	// Acquire 尝试获取 key 上的锁，成功返回持有者 token。
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)

	// Release 归还锁。token 不匹配时静默返回。
	Release(ctx context.Context, key string, token string) error
}
