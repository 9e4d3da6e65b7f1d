// internal/zookeeper/lock.go
package zookeeper

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
)

// DistributedLock 定义了一个分布式锁对象。
// 基于临时顺序节点实现：会话断开后节点自动删除，锁随之释放，
// 不需要像租约锁那样依赖 TTL 自愈。
type DistributedLock struct {
	conn     *Conn  // ZooKeeper连接
	path     string // 锁的路径，例如 /distributed_locks/order-123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}

	lockPath := lockRoot + "/" + resourceID
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}

	return &DistributedLock{
		conn: conn,
		path: lockPath,
	}, nil
}

func ensurePath(conn *Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return fmt.Errorf("failed to check node %s: %w", path, err)
	}
	if !exists {
		if _, err := conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("failed to create node %s: %w", path, err)
		}
	}
	return nil
}

// TryLock 非阻塞地尝试获取锁。
// 在锁路径下创建一个临时顺序节点；如果自己是序号最小的节点则持有锁，
// 否则立即删除自己的节点并返回 false。
func (l *DistributedLock) TryLock() (bool, error) {
	// 普通临时顺序节点，名字形如 lock-0000000001，字典序即申请顺序
	nodePath, err := l.conn.Create(l.path+"/lock-", []byte(""), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	if err != nil {
		return false, fmt.Errorf("failed to create sequential node: %w", err)
	}

	children, _, err := l.conn.Children(l.path)
	if err != nil {
		l.conn.Delete(nodePath, -1)
		return false, fmt.Errorf("failed to get children nodes: %w", err)
	}
	sort.Strings(children)

	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")
	if len(children) > 0 && myNodeName == children[0] {
		l.lockNode = nodePath
		return true, nil
	}

	// 有更早的竞争者，放弃本次尝试
	if err := l.conn.Delete(nodePath, -1); err != nil && err != zk.ErrNoNode {
		return false, fmt.Errorf("failed to delete contending node: %w", err)
	}
	return false, nil
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && err != zk.ErrNoNode {
		return fmt.Errorf("failed to delete lock node: %w", err)
	}
	l.lockNode = ""
	return nil
}
