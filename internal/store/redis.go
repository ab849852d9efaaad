package store

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// RedisBackend keeps each bucket in one hash named <prefix><bucket>.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend stores buckets under the given key prefix.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "amalnama:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) hash(bucket string) string {
	return r.prefix + bucket
}

func (r *RedisBackend) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	v, err := r.client.HGet(ctx, r.hash(bucket), key).Bytes()
	if err == redis.Nil {
		return nil, notFound(bucket, key)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "redis get %s/%s", bucket, key)
	}
	return v, nil
}

func (r *RedisBackend) Put(ctx context.Context, bucket, key string, value []byte) error {
	return errors.Trace(r.client.HSet(ctx, r.hash(bucket), key, value).Err())
}

func (r *RedisBackend) Delete(ctx context.Context, bucket, key string) error {
	return errors.Trace(r.client.HDel(ctx, r.hash(bucket), key).Err())
}

func (r *RedisBackend) Scan(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	var (
		out    []Entry
		cursor uint64
	)
	match := escapeGlob(prefix) + "*"
	for {
		kvs, next, err := r.client.HScan(ctx, r.hash(bucket), cursor, match, 256).Result()
		if err != nil {
			return nil, errors.Annotatef(err, "redis scan %s", bucket)
		}
		for i := 0; i+1 < len(kvs); i += 2 {
			out = append(out, Entry{Key: kvs[i], Value: []byte(kvs[i+1])})
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sortEntries(out)
	return dedupe(out), nil
}

func (r *RedisBackend) DeleteBucket(ctx context.Context, bucket string) error {
	return errors.Trace(r.client.Del(ctx, r.hash(bucket)).Err())
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// escapeGlob quotes the characters HSCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dedupe drops repeated keys; HSCAN may return an entry more than once.
func dedupe(sorted []Entry) []Entry {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, e := range sorted[1:] {
		if e.Key != out[len(out)-1].Key {
			out = append(out, e)
		}
	}
	return out
}
