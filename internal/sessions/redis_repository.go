package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRepository stores each session as JSON under <prefix><digest> with a TTL
// matching its expiry, and indexes digests per user in a set.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisRepository{client: client, prefix: prefix}
}

func (r *RedisRepository) key(digest string) string { return r.prefix + digest }

func (r *RedisRepository) userKey(sub string) string { return r.prefix + "user:" + sub }

func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.key(s.ID), b, ttl)
		p.SAdd(ctx, r.userKey(s.Sub), s.ID)
		p.Expire(ctx, r.userKey(s.Sub), ttl)
		return nil
	})
	return err
}

func (r *RedisRepository) Get(ctx context.Context, digest string) (*Session, error) {
	return r.decode(r.client.Get(ctx, r.key(digest)).Bytes())
}

func (r *RedisRepository) Take(ctx context.Context, digest string) (*Session, error) {
	s, err := r.decode(r.client.GetDel(ctx, r.key(digest)).Bytes())
	if err != nil || s == nil {
		return s, err
	}
	return s, r.client.SRem(ctx, r.userKey(s.Sub), digest).Err()
}

func (r *RedisRepository) Delete(ctx context.Context, digest string) error {
	_, err := r.Take(ctx, digest)
	return err
}

func (r *RedisRepository) DeleteBySub(ctx context.Context, sub string) (int64, error) {
	digests, err := r.client.SMembers(ctx, r.userKey(sub)).Result()
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(digests))
	for _, d := range digests {
		keys = append(keys, r.key(d))
	}
	var n int64
	if len(keys) > 0 {
		if n, err = r.client.Del(ctx, keys...).Result(); err != nil {
			return 0, err
		}
	}
	return n, r.client.Del(ctx, r.userKey(sub)).Err()
}

func (r *RedisRepository) decode(b []byte, err error) (*Session, error) {
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
