package state

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/oladejiayo/localzure-sub003/pkg/log"
	"github.com/oladejiayo/localzure-sub003/pkg/serializer"
)

// RedisConfig configures the shared, multi-instance Backend. The
// DefaultRedisConfig's values match the reference
// client's defaults (localhost:6379/0, a "localzure:" prefix, a
// 50-connection pool, 5s socket timeouts, 3 retries with a 100ms
// exponential backoff base).
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	KeyPrefix      string
	PoolSize       int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultRedisConfig returns the reference configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:           "localhost:6379",
		DB:             0,
		KeyPrefix:      "localzure:",
		PoolSize:       50,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
	}
}

// Redis is a Backend implementation shared across LocalZure instances
// via a Redis server. Namespacing is implemented with key prefixes
// rather than Redis databases so a single Redis instance can host
// every emulated service.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis dials a Redis server using cfg (zero fields fall back to
// DefaultRedisConfig's values) and verifies connectivity with PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	def := DefaultRedisConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, newBackendFailure("connect", fmt.Errorf("redis connection failed: %w", err))
	}

	log.Logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Str("prefix", cfg.KeyPrefix).
		Msg("redis state backend connected")

	return &Redis{client: client, cfg: cfg}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) makeKey(namespace, key string) string {
	return fmt.Sprintf("%s%s:%s", r.cfg.KeyPrefix, namespace, key)
}

func (r *Redis) namespacePrefix(namespace string) string {
	return fmt.Sprintf("%s%s:", r.cfg.KeyPrefix, namespace)
}

// withRetry retries op up to cfg.MaxRetries times with exponential
// backoff on connection/timeout errors, matching the reference
// client's retry loop.
func (r *Redis) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	delay := r.cfg.RetryBaseDelay

	for attempt := 0; attempt < r.cfg.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return newBackendFailure(op, err)
		}
		lastErr = err
		if attempt < r.cfg.MaxRetries-1 {
			log.Logger.Warn().Err(err).Int("attempt", attempt+1).Int("max_retries", r.cfg.MaxRetries).
				Dur("delay", delay).Msg("redis operation failed, retrying")
			select {
			case <-ctx.Done():
				return newBackendFailure(op, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return newBackendFailure(op, fmt.Errorf("redis operation failed after %d retries: %w", r.cfg.MaxRetries, lastErr))
}

func isRetryable(err error) bool {
	return strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "connection") || strings.Contains(err.Error(), "refused")
}

func (r *Redis) Get(ctx context.Context, namespace, key string) (interface{}, bool, error) {
	redisKey := r.makeKey(namespace, key)
	var data []byte
	var found bool

	err := r.withRetry(ctx, "get", func() error {
		raw, err := r.client.Get(ctx, redisKey).Bytes()
		if err == redis.Nil {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		data = raw
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	value, err := serializer.Decode(data)
	if err != nil {
		return nil, false, newSerialization("get", namespace, key, err)
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	encoded, err := serializer.Encode(value)
	if err != nil {
		return newSerialization("set", namespace, key, err)
	}
	redisKey := r.makeKey(namespace, key)

	return r.withRetry(ctx, "set", func() error {
		if ttl > 0 {
			return r.client.Set(ctx, redisKey, encoded, ttl).Err()
		}
		return r.client.Set(ctx, redisKey, encoded, 0).Err()
	})
}

func (r *Redis) Delete(ctx context.Context, namespace, key string) (bool, error) {
	redisKey := r.makeKey(namespace, key)
	var n int64
	err := r.withRetry(ctx, "delete", func() error {
		res, err := r.client.Del(ctx, redisKey).Result()
		n = res
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	prefix := r.namespacePrefix(namespace)
	scanPattern := prefix + "*"
	if pattern != "" {
		scanPattern = prefix + pattern
	}

	var keys []string
	err := r.withRetry(ctx, "list", func() error {
		keys = keys[:0]
		var cursor uint64
		for {
			batch, next, err := r.client.Scan(ctx, cursor, scanPattern, 100).Result()
			if err != nil {
				return err
			}
			for _, redisKey := range batch {
				keys = append(keys, strings.TrimPrefix(redisKey, prefix))
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (r *Redis) BatchGet(ctx context.Context, namespace string, keys []string) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	if len(keys) == 0 {
		return result, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.makeKey(namespace, k)
	}

	var values []interface{}
	err := r.withRetry(ctx, "batch_get", func() error {
		var err error
		values, err = r.client.MGet(ctx, redisKeys...).Result()
		return err
	})
	if err != nil {
		return nil, err
	}

	for i, raw := range values {
		if raw == nil {
			continue
		}
		var data []byte
		switch v := raw.(type) {
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			continue
		}
		value, err := serializer.Decode(data)
		if err != nil {
			return nil, newSerialization("batch_get", namespace, keys[i], err)
		}
		result[keys[i]] = value
	}
	return result, nil
}

func (r *Redis) BatchSet(ctx context.Context, namespace string, items map[string]interface{}, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}

	encoded := make(map[string][]byte, len(items))
	for k, v := range items {
		data, err := serializer.Encode(v)
		if err != nil {
			return newSerialization("batch_set", namespace, k, err)
		}
		encoded[k] = data
	}

	return r.withRetry(ctx, "batch_set", func() error {
		pipe := r.client.TxPipeline()
		for k, data := range encoded {
			redisKey := r.makeKey(namespace, k)
			if ttl > 0 {
				pipe.Set(ctx, redisKey, data, ttl)
			} else {
				pipe.Set(ctx, redisKey, data, 0)
			}
		}
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (r *Redis) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	keys, err := r.List(ctx, namespace, "")
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.makeKey(namespace, k)
	}

	var n int64
	err = r.withRetry(ctx, "clear_namespace", func() error {
		res, err := r.client.Del(ctx, redisKeys...).Result()
		n = res
		return err
	})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *Redis) Exists(ctx context.Context, namespace, key string) (bool, error) {
	redisKey := r.makeKey(namespace, key)
	var n int64
	err := r.withRetry(ctx, "exists", func() error {
		res, err := r.client.Exists(ctx, redisKey).Result()
		n = res
		return err
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Redis) GetTTL(ctx context.Context, namespace, key string) (time.Duration, bool, error) {
	redisKey := r.makeKey(namespace, key)
	var ttl time.Duration
	err := r.withRetry(ctx, "get_ttl", func() error {
		res, err := r.client.TTL(ctx, redisKey).Result()
		ttl = res
		return err
	})
	if err != nil {
		return 0, false, err
	}

	switch {
	case ttl == -2*time.Second:
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	case ttl == -1*time.Second:
		return 0, false, nil
	default:
		return ttl, true, nil
	}
}

func (r *Redis) SetTTL(ctx context.Context, namespace, key string, ttl time.Duration) (bool, error) {
	redisKey := r.makeKey(namespace, key)
	var ok bool
	err := r.withRetry(ctx, "set_ttl", func() error {
		res, err := r.client.Expire(ctx, redisKey, ttl).Result()
		ok = res
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Namespaces is approximated by scanning every key under the global
// prefix and collecting distinct namespace segments; Redis has no
// native namespace index so this is O(total keys), matching the
// reference implementation's reliance on `list()` for the same task.
func (r *Redis) Namespaces(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	scanPattern := r.cfg.KeyPrefix + "*"

	err := r.withRetry(ctx, "namespaces", func() error {
		var cursor uint64
		for {
			batch, next, err := r.client.Scan(ctx, cursor, scanPattern, 100).Result()
			if err != nil {
				return err
			}
			for _, redisKey := range batch {
				rest := strings.TrimPrefix(redisKey, r.cfg.KeyPrefix)
				if idx := strings.Index(rest, ":"); idx >= 0 {
					seen[rest[:idx]] = struct{}{}
				}
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	return out, nil
}

// Transaction buffers writes and applies them in a single MULTI/EXEC
// pipeline on success, matching the reference TransactionContext.
// Redis has no native rollback for arbitrary application logic, so an
// error from fn simply discards the buffered operations without
// touching the server.
func (r *Redis) Transaction(ctx context.Context, namespace string, fn func(Txn) error) error {
	txn := &redisTxn{backend: r, namespace: namespace}

	if err := fn(txn); err != nil {
		return newTransaction("transaction", err)
	}
	if len(txn.ops) == 0 {
		return nil
	}

	err := r.withRetry(ctx, "transaction", func() error {
		pipe := r.client.TxPipeline()
		for _, op := range txn.ops {
			redisKey := r.makeKey(namespace, op.key)
			if op.deleted {
				pipe.Del(ctx, redisKey)
				continue
			}
			if op.ttl > 0 {
				pipe.Set(ctx, redisKey, op.data, op.ttl)
			} else {
				pipe.Set(ctx, redisKey, op.data, 0)
			}
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return newTransaction("transaction", err)
	}
	return nil
}

type redisTxnOp struct {
	key     string
	data    []byte
	ttl     time.Duration
	deleted bool
}

type redisTxn struct {
	backend   *Redis
	namespace string
	ops       []redisTxnOp
}

func (t *redisTxn) Get(ctx context.Context, key string) (interface{}, bool, error) {
	return t.backend.Get(ctx, t.namespace, key)
}

func (t *redisTxn) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := serializer.Encode(value)
	if err != nil {
		return newSerialization("transaction.set", t.namespace, key, err)
	}
	t.ops = append(t.ops, redisTxnOp{key: key, data: data, ttl: ttl})
	return nil
}

func (t *redisTxn) Delete(ctx context.Context, key string) error {
	t.ops = append(t.ops, redisTxnOp{key: key, deleted: true})
	return nil
}
