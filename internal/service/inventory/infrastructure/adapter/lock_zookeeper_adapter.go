package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"atlas/internal/service/inventory/domain/port"
	"atlas/internal/zookeeper"
)

// ZookeeperLockAdapter 把排队式的 ZooKeeper 锁适配到 port.DistributedLocker。
// token 是本次持锁创建的临时节点路径；TTL 参数被忽略——临时节点随会话
// 消失，自愈能力由会话保证而不是过期时间。
type ZookeeperLockAdapter struct {
	conn *zookeeper.Conn

	mu   sync.Mutex
	held map[string]*zookeeper.DistributedLock // token -> 持有中的锁
}

// NewZookeeperLockAdapter 创建 ZooKeeper 锁适配器。
func NewZookeeperLockAdapter(conn *zookeeper.Conn) *ZookeeperLockAdapter {
	return &ZookeeperLockAdapter{
		conn: conn,
		held: make(map[string]*zookeeper.DistributedLock),
	}
}

// Acquire 排队抢锁，等待上限由 ctx 控制。
func (a *ZookeeperLockAdapter) Acquire(ctx context.Context, key string, _ time.Duration) (string, error) {
	lock, err := zookeeper.NewDistributedLock(a.conn, key)
	if err != nil {
		return "", errors.Wrap(port.ErrLockUnavailable, err.Error())
	}

	if err := lock.LockCtx(ctx); err != nil {
		if errors.Is(err, zookeeper.ErrLockWait) {
			return "", port.ErrLockBusy
		}
		return "", errors.Wrap(port.ErrLockUnavailable, err.Error())
	}

	token := lock.LockNode()
	a.mu.Lock()
	a.held[token] = lock
	a.mu.Unlock()
	return token, nil
}

// Release 释放 token 对应的锁。未知 token 是 no-op。
func (a *ZookeeperLockAdapter) Release(_ context.Context, _ string, token string) error {
	a.mu.Lock()
	lock, ok := a.held[token]
	delete(a.held, token)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return lock.Unlock()
}
