package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// Conn 封装 ZooKeeper 连接，只暴露锁实现需要的操作。
type Conn struct {
	conn *zk.Conn
}

// Connect 建立到 ZooKeeper 集群的会话。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	if sessionTimeout <= 0 {
		sessionTimeout = 5 * time.Second
	}
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect to zookeeper")
	}
	return &Conn{conn: conn}, nil
}

// EnsurePath 保证一个持久节点存在，已存在不算错误。
func (c *Conn) EnsurePath(path string) error {
	_, err := c.conn.Create(path, []byte{}, 0, zk.WorldACL(zk.PermAll))
	if err != nil && err != zk.ErrNodeExists {
		return errors.Wrapf(err, "create node %s", path)
	}
	return nil
}

// CreateEphemeralSequential 创建受保护的临时顺序节点，返回实际路径。
func (c *Conn) CreateEphemeralSequential(path string) (string, error) {
	return c.conn.CreateProtectedEphemeralSequential(path, []byte{}, zk.WorldACL(zk.PermAll))
}

// Children 列出子节点。
func (c *Conn) Children(path string) ([]string, error) {
	children, _, err := c.conn.Children(path)
	return children, err
}

// WatchExists 检查节点是否存在并返回一次性 watcher。
func (c *Conn) WatchExists(path string) (bool, <-chan zk.Event, error) {
	exists, _, ch, err := c.conn.ExistsW(path)
	return exists, ch, err
}

// Delete 删除节点，节点已不存在不算错误。
func (c *Conn) Delete(path string) error {
	err := c.conn.Delete(path, -1)
	if err != nil && err != zk.ErrNoNode {
		return errors.Wrapf(err, "delete node %s", path)
	}
	return nil
}

// Close 关闭会话，所有临时节点随之消失。
func (c *Conn) Close() {
	c.conn.Close()
}
