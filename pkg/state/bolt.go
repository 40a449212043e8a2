package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"path"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/oladejiayo/localzure-sub003/pkg/serializer"
)

// ttlHeaderLen is the size of the expiry header bbolt stores ahead of
// every encoded value: an 8-byte big-endian Unix nanosecond timestamp,
// zero meaning "no expiration".
const ttlHeaderLen = 8

// Bolt is a single-file durable Backend, the on-disk counterpart to
// Memory for deployments that want persistence without standing up a
// Redis server. Each namespace gets its own bucket, created on first
// use; values are stored as an 8-byte expiry header followed by the
// serializer-encoded payload.
type Bolt struct {
	db *bolt.DB
}

// NewBolt opens (creating if needed) a bbolt database at
// filepath.Join(dataDir, "localzure.db").
func NewBolt(dataDir string) (*Bolt, error) {
	dbPath := filepath.Join(dataDir, "localzure.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, newBackendFailure("open", fmt.Errorf("failed to open bolt database: %w", err))
	}
	return &Bolt{db: db}, nil
}

// Close releases the underlying file handle.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func bucketName(namespace string) []byte {
	return []byte("ns:" + namespace)
}

func encodeEntry(expiry time.Time, payload []byte) []byte {
	out := make([]byte, ttlHeaderLen+len(payload))
	var nanos int64
	if !expiry.IsZero() {
		nanos = expiry.UnixNano()
	}
	binary.BigEndian.PutUint64(out[:ttlHeaderLen], uint64(nanos))
	copy(out[ttlHeaderLen:], payload)
	return out
}

func decodeEntry(raw []byte) (time.Time, []byte, error) {
	if len(raw) < ttlHeaderLen {
		return time.Time{}, nil, fmt.Errorf("corrupt entry: too short")
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:ttlHeaderLen]))
	var expiry time.Time
	if nanos != 0 {
		expiry = time.Unix(0, nanos)
	}
	payload := make([]byte, len(raw)-ttlHeaderLen)
	copy(payload, raw[ttlHeaderLen:])
	return expiry, payload, nil
}

func (b *Bolt) Get(ctx context.Context, namespace, key string) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, newBackendFailure("get", err)
	}

	var value interface{}
	var found bool
	var expired bool

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		expiry, payload, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		if !expiry.IsZero() && time.Now().After(expiry) {
			expired = true
			return nil
		}
		decoded, err := serializer.Decode(payload)
		if err != nil {
			return err
		}
		value = decoded
		found = true
		return nil
	})
	if err != nil {
		return nil, false, newBackendFailure("get", err)
	}
	if expired {
		_, _ = b.Delete(ctx, namespace, key)
		return nil, false, nil
	}
	return value, found, nil
}

func (b *Bolt) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("set", err)
	}
	encoded, err := serializer.Encode(value)
	if err != nil {
		return newSerialization("set", namespace, key, err)
	}
	record := encodeEntry(expiryFor(ttl), encoded)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), record)
	})
}

func (b *Bolt) Delete(ctx context.Context, namespace, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newBackendFailure("delete", err)
	}
	var deleted bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		if bucket.Get([]byte(key)) == nil {
			return nil
		}
		deleted = true
		return bucket.Delete([]byte(key))
	})
	return deleted, err
}

func (b *Bolt) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("list", err)
	}

	var keys []string
	var expiredKeys [][]byte
	now := time.Now()

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			expiry, _, err := decodeEntry(v)
			if err != nil {
				return err
			}
			if !expiry.IsZero() && now.After(expiry) {
				expiredKeys = append(expiredKeys, append([]byte(nil), k...))
				return nil
			}
			if pattern == "" {
				keys = append(keys, string(k))
				return nil
			}
			matched, err := path.Match(pattern, string(k))
			if err != nil {
				return err
			}
			if matched {
				keys = append(keys, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, newBackendFailure("list", err)
	}

	if len(expiredKeys) > 0 {
		_ = b.db.Update(func(tx *bolt.Tx) error {
			bucket := tx.Bucket(bucketName(namespace))
			if bucket == nil {
				return nil
			}
			for _, k := range expiredKeys {
				if err := bucket.Delete(k); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (b *Bolt) BatchGet(ctx context.Context, namespace string, keys []string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("batch_get", err)
	}
	result := make(map[string]interface{})

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		now := time.Now()
		for _, key := range keys {
			raw := bucket.Get([]byte(key))
			if raw == nil {
				continue
			}
			expiry, payload, err := decodeEntry(raw)
			if err != nil {
				return err
			}
			if !expiry.IsZero() && now.After(expiry) {
				continue
			}
			value, err := serializer.Decode(payload)
			if err != nil {
				return err
			}
			result[key] = value
		}
		return nil
	})
	if err != nil {
		return nil, newBackendFailure("batch_get", err)
	}
	return result, nil
}

func (b *Bolt) BatchSet(ctx context.Context, namespace string, items map[string]interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("batch_set", err)
	}
	records := make(map[string][]byte, len(items))
	expiry := expiryFor(ttl)
	for k, v := range items {
		encoded, err := serializer.Encode(v)
		if err != nil {
			return newSerialization("batch_set", namespace, k, err)
		}
		records[k] = encodeEntry(expiry, encoded)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		for k, record := range records {
			if err := bucket.Put([]byte(k), record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, newBackendFailure("clear_namespace", err)
	}
	var count int
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		count = bucket.Stats().KeyN
		return tx.DeleteBucket(bucketName(namespace))
	})
	return count, err
}

func (b *Bolt) Exists(ctx context.Context, namespace, key string) (bool, error) {
	_, found, err := b.Get(ctx, namespace, key)
	return found, err
}

func (b *Bolt) GetTTL(ctx context.Context, namespace, key string) (time.Duration, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, newBackendFailure("get_ttl", err)
	}

	var found bool
	var expiry time.Time
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		e, _, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		expiry = e
		found = true
		return nil
	})
	if err != nil {
		return 0, false, newBackendFailure("get_ttl", err)
	}
	if !found {
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	}
	if expiry.IsZero() {
		return 0, false, nil
	}
	remaining := time.Until(expiry)
	if remaining <= 0 {
		_, _ = b.Delete(ctx, namespace, key)
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	}
	return remaining, true, nil
}

func (b *Bolt) SetTTL(ctx context.Context, namespace, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newBackendFailure("set_ttl", err)
	}
	var updated bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName(namespace))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		_, payload, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		updated = true
		return bucket.Put([]byte(key), encodeEntry(expiryFor(ttl), payload))
	})
	return updated, err
}

func (b *Bolt) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("namespaces", err)
	}
	var names []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			if trimmed := bytes.TrimPrefix(name, []byte("ns:")); !bytes.Equal(trimmed, name) {
				names = append(names, string(trimmed))
			}
			return nil
		})
	})
	if err != nil {
		return nil, newBackendFailure("namespaces", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Transaction runs fn against bbolt's own read-write transaction: a
// boltTxn Txn implementation backed directly by *bolt.Tx for writes,
// so rollback is bbolt's native behavior (nothing is written unless
// Update's callback returns nil). Reads are served from a snapshot of
// the bucket taken before fn runs, rather than the live bucket, so a
// transaction never observes its own pending writes — bbolt's
// bucket.Get would otherwise see them immediately, since bbolt has no
// built-in read-your-writes isolation within a single Update. This
// matches Memory and Redis, whose Txn.Get also reads only committed
// state.
func (b *Bolt) Transaction(ctx context.Context, namespace string, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("transaction", err)
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		snapshot := make(map[string][]byte)
		if err := bucket.ForEach(func(k, v []byte) error {
			snapshot[string(k)] = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return err
		}
		txn := &boltTxn{bucket: bucket, snapshot: snapshot}
		return fn(txn)
	})
	if err != nil {
		return newTransaction("transaction", err)
	}
	return nil
}

type boltTxn struct {
	bucket   *bolt.Bucket
	snapshot map[string][]byte
}

func (t *boltTxn) Get(ctx context.Context, key string) (interface{}, bool, error) {
	raw, ok := t.snapshot[key]
	if !ok {
		return nil, false, nil
	}
	expiry, payload, err := decodeEntry(raw)
	if err != nil {
		return nil, false, err
	}
	if !expiry.IsZero() && time.Now().After(expiry) {
		return nil, false, nil
	}
	value, err := serializer.Decode(payload)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *boltTxn) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	encoded, err := serializer.Encode(value)
	if err != nil {
		return err
	}
	return t.bucket.Put([]byte(key), encodeEntry(expiryFor(ttl), encoded))
}

func (t *boltTxn) Delete(ctx context.Context, key string) error {
	return t.bucket.Delete([]byte(key))
}
