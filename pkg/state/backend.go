// Package state defines the storage contract every LocalZure service
// backend (Key Vault secrets, OAuth session bookkeeping, future
// service emulators) is built on: namespaced key-value storage with
// TTL expiry, batch operations, glob listing, and transactions.
//
// Three implementations satisfy Backend: Memory (fast, volatile,
// the default for tests and single-process demos), Redis (shared,
// survives process restarts, suitable for multi-instance deployments),
// and Bolt (single-file durable storage with no external dependency).
package state

import (
	"context"
	"time"
)

// Backend is the contract every state store implementation fulfills.
// Namespace isolates keys per emulated service (e.g. "keyvault",
// "oauth") so that two services never collide on the same key.
//
// All methods accept a context so implementations backed by a network
// round trip (Redis) can honor cancellation and deadlines; the Memory
// and Bolt implementations check ctx.Err() at entry but otherwise run
// to completion since they never block on I/O that outlives a single
// call.
type Backend interface {
	// Get retrieves the value stored at namespace/key. found is false
	// if the key is absent or has expired.
	Get(ctx context.Context, namespace, key string) (value interface{}, found bool, err error)

	// Set stores value at namespace/key. A zero ttl means no
	// expiration; a positive ttl is the duration until the key
	// becomes unreadable.
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error

	// Delete removes a key. deleted is false if the key did not exist.
	Delete(ctx context.Context, namespace, key string) (deleted bool, err error)

	// List returns keys in namespace, optionally filtered by a
	// shell-glob pattern (`*`, `?`, `[...]`). An empty pattern matches
	// every key.
	List(ctx context.Context, namespace, pattern string) ([]string, error)

	// BatchGet retrieves several keys in one call. Missing or expired
	// keys are simply absent from the result map.
	BatchGet(ctx context.Context, namespace string, keys []string) (map[string]interface{}, error)

	// BatchSet stores several key-value pairs under one shared ttl.
	// Implementations serialize every value before storing any of
	// them, so a single unencodable value fails the whole batch.
	BatchSet(ctx context.Context, namespace string, items map[string]interface{}, ttl time.Duration) error

	// ClearNamespace deletes every key in namespace and reports how
	// many were removed.
	ClearNamespace(ctx context.Context, namespace string) (removed int, err error)

	// Exists reports whether key is present (and unexpired) in
	// namespace.
	Exists(ctx context.Context, namespace, key string) (bool, error)

	// GetTTL returns the remaining time to live for key. hasTTL is
	// false when the key has no expiration set. Returns a
	// KindKeyNotFound error if the key does not exist.
	GetTTL(ctx context.Context, namespace, key string) (ttl time.Duration, hasTTL bool, err error)

	// SetTTL updates the expiration for an existing key. updated is
	// false if the key does not exist.
	SetTTL(ctx context.Context, namespace, key string, ttl time.Duration) (updated bool, err error)

	// Namespaces lists every namespace currently holding data, used by
	// the snapshot exporter to enumerate what to back up.
	Namespaces(ctx context.Context) ([]string, error)

	// Transaction runs fn against a Txn scoped to namespace. Writes
	// issued through the Txn are invisible to other callers until fn
	// returns without error, at which point they commit atomically;
	// returning an error (or fn panicking) rolls every write back.
	Transaction(ctx context.Context, namespace string, fn func(Txn) error) error
}

// Txn is the restricted view of a Backend available inside a
// Transaction callback. Reads observe only state committed before the
// transaction began, never the txn's own buffered writes; writes are
// buffered until the transaction commits.
type Txn interface {
	Get(ctx context.Context, key string) (value interface{}, found bool, err error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
