package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// 只有当锁的值等于我们设置的值时才删除
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// TryLock 使用 SETNX + TTL 获取尽力而为的分布式锁
// 返回的 release 使用 Lua 脚本原子释放；未获取到锁时 ok=false
func TryLock(ctx context.Context, c *goredis.Client, key string, ttl time.Duration) (release func(), ok bool, err error) {
	value := uuid.NewString()
	ok, err = c.SetNX(ctx, key, value, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		rc, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(rc, c, []string{key}, value).Err()
	}, true, nil
}
