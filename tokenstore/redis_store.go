package tokenstore

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the pair under two plain string keys, prefix+AccessTokenKey
// and prefix+RefreshTokenKey, so several processes can share a session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Keys returns the access and refresh token keys used in redis
func (rs *RedisStore) Keys() (string, string) {
	return rs.prefix + AccessTokenKey, rs.prefix + RefreshTokenKey
}

func (rs *RedisStore) Load(ctx context.Context) (Pair, error) {
	accessKey, refreshKey := rs.Keys()
	values, err := rs.client.MGet(ctx, accessKey, refreshKey).Result()
	if err != nil {
		return Pair{}, errors.Wrap(err, "RedisStore.Load MGet")
	}

	var pair Pair
	if len(values) == 2 {
		pair.AccessToken, _ = values[0].(string)
		pair.RefreshToken, _ = values[1].(string)
	}
	return pair, nil
}

func (rs *RedisStore) Save(ctx context.Context, pair Pair) error {
	accessKey, refreshKey := rs.Keys()
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, accessKey, pair.AccessToken, 0)
		pipe.Set(ctx, refreshKey, pair.RefreshToken, 0)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RedisStore.Save")
	}
	return nil
}

func (rs *RedisStore) Clear(ctx context.Context) error {
	accessKey, refreshKey := rs.Keys()
	if err := rs.client.Del(ctx, accessKey, refreshKey).Err(); err != nil {
		return errors.Wrap(err, "RedisStore.Clear Del")
	}
	return nil
}
