package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const lockRoot = "/inventory_locks"

// ErrLockWait 表示在 ctx 允许的时间内没有排到队首。
var ErrLockWait = errors.New("timed out waiting for zookeeper lock")

// DistributedLock 是基于临时顺序节点的排队锁：
// 每个竞争者在资源路径下创建一个临时顺序节点，序号最小者持锁，
// 其余只监听自己前一个节点，避免惊群。会话断开时临时节点自动删除，
// 锁随之自愈，不需要 TTL。
type DistributedLock struct {
	conn     *Conn
	path     string // 资源路径，例如 /inventory_locks/inventory-lock:sku-1
	lockNode string // 抢锁时自己创建的节点
}

// NewDistributedLock 为一个资源创建锁实例。资源 ID 中的 '/' 会被替换，
// 避免被 ZooKeeper 解释成路径层级。
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	if err := conn.EnsurePath(lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + strings.ReplaceAll(resourceID, "/", "_")
	if err := conn.EnsurePath(lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// LockCtx 尝试获取锁，在 ctx 取消或超时前一直排队等待。
func (l *DistributedLock) LockCtx(ctx context.Context) error {
	nodePath, err := l.conn.CreateEphemeralSequential(l.path + "/lock-")
	if err != nil {
		return errors.Wrap(err, "create sequential lock node")
	}
	l.lockNode = nodePath

	for {
		children, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "list lock queue")
		}
		sort.Strings(children)

		myNode := strings.TrimPrefix(l.lockNode, l.path+"/")
		if len(children) > 0 && myNode == children[0] {
			return nil // 队首即持锁
		}

		// 只监听自己前面那个节点
		prev := -1
		for i, child := range children {
			if child == myNode {
				prev = i - 1
				break
			}
		}
		if prev < 0 {
			l.abandon()
			return errors.New("own lock node missing from queue")
		}

		exists, eventCh, err := l.conn.WatchExists(l.path + "/" + children[prev])
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "watch previous lock node")
		}
		if !exists {
			continue // 前一个节点刚好消失，重新检查队列
		}

		select {
		case event := <-eventCh:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			l.abandon()
			return errors.Wrap(ErrLockWait, ctx.Err().Error())
		}
	}
}

// Unlock 释放锁。
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock held")
	}
	err := l.conn.Delete(l.lockNode)
	l.lockNode = ""
	return err
}

// LockNode 返回本次持锁创建的节点路径，作为持有者凭证。
func (l *DistributedLock) LockNode() string {
	return l.lockNode
}

// abandon 放弃排队，删掉自己的节点以免阻塞后面的等待者。
func (l *DistributedLock) abandon() {
	if l.lockNode != "" {
		_ = l.conn.Delete(l.lockNode)
		l.lockNode = ""
	}
}
