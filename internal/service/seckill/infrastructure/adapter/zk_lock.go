// internal/service/seckill/infrastructure/adapter/zk_lock.go
package adapter

import (
	"context"
	"time"

	"flashsale/internal/service/seckill/domain/port"
	"flashsale/internal/zookeeper"
)

// ZkLockFactory 创建基于 ZooKeeper 临时顺序节点的分布式锁，
// 作为 Redis 租约锁的可配置替代实现。
type ZkLockFactory struct {
	conn *zookeeper.Conn
}

func NewZkLockFactory(conn *zookeeper.Conn) *ZkLockFactory {
	return &ZkLockFactory{conn: conn}
}

func (f *ZkLockFactory) NewLock(name string) (port.Lock, error) {
	lock, err := zookeeper.NewDistributedLock(f.conn, name)
	if err != nil {
		return nil, err
	}
	return &zkLock{lock: lock}, nil
}

type zkLock struct {
	lock *zookeeper.DistributedLock
}

// TryLock 忽略 ttl：临时节点随会话消失，锁的自愈由会话机制保证。
func (l *zkLock) TryLock(_ context.Context, _ time.Duration) (bool, error) {
	return l.lock.TryLock()
}

func (l *zkLock) Unlock(_ context.Context) error {
	return l.lock.Unlock()
}
