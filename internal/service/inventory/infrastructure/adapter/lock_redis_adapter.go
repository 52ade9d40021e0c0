package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	redispkg "atlas/internal/pkg/redis"
	"atlas/internal/service/inventory/domain/port"
)

const unlockScriptName = "inventory_unlock"

// 只有 token 匹配才删除，防止慢持有者在 TTL 过期、锁被他人重新获取
// 之后误删别人的锁。不匹配返回 0，调用方按 no-op 处理。
var unlockScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
else
    return 0
end
`

// RedisLockAdapter 是 port.DistributedLocker 的 Redis 实现：
// SET NX PX 做原子的 set-if-absent-with-expiry，持有者 token 随机生成。
// 锁靠过期自愈，持有者崩溃后不需要任何清理路径。
type RedisLockAdapter struct {
	redisClient *redispkg.Client
}

// NewRedisLockAdapter 创建锁适配器，创建时注册解锁脚本。
func NewRedisLockAdapter(redisClient *redispkg.Client) (*RedisLockAdapter, error) {
	if err := redisClient.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, errors.Wrap(err, "failed to load unlock script")
	}
	return &RedisLockAdapter{redisClient: redisClient}, nil
}

// Acquire 实现 set-if-absent 抢锁。已被占用返回 ErrLockBusy，
// 后端不可达返回 ErrLockUnavailable（编排器据此失败开放）。
func (a *RedisLockAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := a.redisClient.GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", errors.Wrap(port.ErrLockUnavailable, err.Error())
	}
	if !ok {
		return "", port.ErrLockBusy
	}
	return token, nil
}

// Release 用 Lua 脚本做 compare-and-delete。token 不匹配是 no-op。
func (a *RedisLockAdapter) Release(ctx context.Context, key string, token string) error {
	_, err := a.redisClient.RunScript(ctx, unlockScriptName, []string{key}, token)
	if err != nil {
		return errors.Wrap(port.ErrLockUnavailable, err.Error())
	}
	return nil
}
