// Package redisstate caches reconstructed attendance states in Redis.
package redisstate

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
)

const keyPrefix = "attendance:state:"

// putScript stores a state unless the cached one is newer: more modifications,
// or as many over a later base record.
var putScript = redis.NewScript(`
local count = redis.call('HGET', KEYS[1], 'count')
if count then
	local base = tonumber(redis.call('HGET', KEYS[1], 'base') or '0')
	count = tonumber(count)
	if count > tonumber(ARGV[1]) or (count == tonumber(ARGV[1]) and base > tonumber(ARGV[2])) then
		return 0
	end
end
redis.call('HSET', KEYS[1], 'count', ARGV[1], 'base', ARGV[2], 'state', ARGV[3])
if tonumber(ARGV[4]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[4])
end
return 1
`)

// Connect returns a client for a redis:// URL or a host:port address.
func Connect(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(conf.Addr, "redis://") || strings.HasPrefix(conf.Addr, "rediss://") {
		opt, err := redis.ParseURL(conf.Addr)
		if err != nil {
			return nil, errors.Wrap(err, "parsing redis url")
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: conf.Addr, Password: conf.Password, DB: conf.DB})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ attendance.StateCache = (*Cache)(nil)

func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func redisKey(key attendance.Key) string {
	return keyPrefix + key.String()
}

func (c *Cache) GetState(ctx context.Context, key attendance.Key) (attendance.EffectiveState, bool, error) {
	raw, err := c.client.HGet(ctx, redisKey(key), "state").Bytes()
	if errors.Is(err, redis.Nil) {
		return attendance.EffectiveState{}, false, nil
	}
	if err != nil {
		return attendance.EffectiveState{}, false, errors.Wrap(err, "reading cached state")
	}

	var state attendance.EffectiveState
	if err := json.Unmarshal(raw, &state); err != nil {
		return attendance.EffectiveState{}, false, errors.Wrap(err, "decoding cached state")
	}
	return state, true, nil
}

func (c *Cache) PutState(ctx context.Context, state attendance.EffectiveState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	err = putScript.Run(ctx, c.client, []string{redisKey(state.Key())}, state.ModificationCount, state.BaseVersion(), raw, c.ttl.Milliseconds()).Err()
	return errors.Wrap(err, "caching state")
}

func (c *Cache) DeleteState(ctx context.Context, key attendance.Key) error {
	return errors.Wrap(c.client.Del(ctx, redisKey(key)).Err(), "deleting cached state")
}
