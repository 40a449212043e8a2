package state

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/oladejiayo/localzure-sub003/pkg/serializer"
)

type entry struct {
	value  interface{}
	expiry time.Time // zero value means no expiration
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// Memory is a process-local Backend backed by nested maps. It is the
// fastest implementation and the default for tests and single-process
// runs, at the cost of losing everything on restart.
type Memory struct {
	mu      sync.Mutex
	storage map[string]map[string]entry
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{storage: make(map[string]map[string]entry)}
}

func serialize(op, namespace, key string, value interface{}) (interface{}, error) {
	if err := serializer.RoundTrip(value); err != nil {
		return nil, newSerialization(op, namespace, key, err)
	}
	// Round-trip through the serializer's JSON path so stored values
	// behave identically across Memory, Redis, and Bolt: a struct set
	// here and read back comes back as the same map/slice/primitive
	// shape a JSON-backed store would produce.
	encoded, err := serializer.Encode(value)
	if err != nil {
		return nil, newSerialization(op, namespace, key, err)
	}
	decoded, err := serializer.Decode(encoded)
	if err != nil {
		return nil, newSerialization(op, namespace, key, err)
	}
	return decoded, nil
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (m *Memory) Get(ctx context.Context, namespace, key string) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, newBackendFailure("get", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return nil, false, nil
	}
	e, ok := ns[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		delete(ns, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("set", err)
	}
	sv, err := serialize("set", namespace, key, value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.storage[namespace]
	if !ok {
		ns = make(map[string]entry)
		m.storage[namespace] = ns
	}
	ns[key] = entry{value: sv, expiry: expiryFor(ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, namespace, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newBackendFailure("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return false, nil
	}
	if _, ok := ns[key]; !ok {
		return false, nil
	}
	delete(ns, key)
	return true, nil
}

func (m *Memory) List(ctx context.Context, namespace, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("list", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return []string{}, nil
	}

	now := time.Now()
	for k, e := range ns {
		if e.expired(now) {
			delete(ns, k)
		}
	}

	keys := make([]string, 0, len(ns))
	for k := range ns {
		if pattern == "" {
			keys = append(keys, k)
			continue
		}
		matched, err := path.Match(pattern, k)
		if err != nil {
			return nil, newBackendFailure("list", err)
		}
		if matched {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Memory) BatchGet(ctx context.Context, namespace string, keys []string) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("batch_get", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]interface{})
	ns, ok := m.storage[namespace]
	if !ok {
		return result, nil
	}
	now := time.Now()
	for _, key := range keys {
		e, ok := ns[key]
		if !ok || e.expired(now) {
			continue
		}
		result[key] = e.value
	}
	return result, nil
}

func (m *Memory) BatchSet(ctx context.Context, namespace string, items map[string]interface{}, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("batch_set", err)
	}
	serialized := make(map[string]interface{}, len(items))
	for k, v := range items {
		sv, err := serialize("batch_set", namespace, k, v)
		if err != nil {
			return err
		}
		serialized[k] = sv
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.storage[namespace]
	if !ok {
		ns = make(map[string]entry)
		m.storage[namespace] = ns
	}
	expiry := expiryFor(ttl)
	for k, v := range serialized {
		ns[k] = entry{value: v, expiry: expiry}
	}
	return nil
}

func (m *Memory) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, newBackendFailure("clear_namespace", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return 0, nil
	}
	count := len(ns)
	delete(m.storage, namespace)
	return count, nil
}

func (m *Memory) Exists(ctx context.Context, namespace, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newBackendFailure("exists", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return false, nil
	}
	e, ok := ns[key]
	if !ok {
		return false, nil
	}
	if e.expired(time.Now()) {
		delete(ns, key)
		return false, nil
	}
	return true, nil
}

func (m *Memory) GetTTL(ctx context.Context, namespace, key string) (time.Duration, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, newBackendFailure("get_ttl", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	}
	e, ok := ns[key]
	if !ok {
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	}
	if e.expiry.IsZero() {
		return 0, false, nil
	}
	remaining := time.Until(e.expiry)
	if remaining <= 0 {
		delete(ns, key)
		return 0, false, newKeyNotFound("get_ttl", namespace, key)
	}
	return remaining, true, nil
}

func (m *Memory) SetTTL(ctx context.Context, namespace, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, newBackendFailure("set_ttl", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.storage[namespace]
	if !ok {
		return false, nil
	}
	e, ok := ns[key]
	if !ok {
		return false, nil
	}
	if e.expired(time.Now()) {
		delete(ns, key)
		return false, nil
	}
	e.expiry = expiryFor(ttl)
	ns[key] = e
	return true, nil
}

func (m *Memory) Namespaces(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, newBackendFailure("namespaces", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.storage))
	for ns := range m.storage {
		out = append(out, ns)
	}
	return out, nil
}

// Transaction hands the caller a memoryTxn that buffers writes in an
// overlay, and on fn's successful return applies every buffered write
// atomically under the lock. On error, the overlay is discarded and
// nothing the transaction did is kept.
func (m *Memory) Transaction(ctx context.Context, namespace string, fn func(Txn) error) (err error) {
	if err := ctx.Err(); err != nil {
		return newBackendFailure("transaction", err)
	}

	txn := &memoryTxn{backend: m, ctx: ctx, namespace: namespace, overlay: make(map[string]*entry)}

	defer func() {
		if r := recover(); r != nil {
			err = newTransaction("transaction", newBackendFailure("transaction", errPanic(r)))
		}
	}()

	if err := fn(txn); err != nil {
		return newTransaction("transaction", err)
	}
	txn.commit()
	return nil
}

type errPanicT struct{ v interface{} }

func (e errPanicT) Error() string { return "panic recovered in transaction" }
func errPanic(v interface{}) error { return errPanicT{v} }

// memoryTxn buffers writes in an overlay map so backend state is
// never mutated until commit. Reads bypass the overlay and go
// straight to the backend, so the transaction never observes its own
// uncommitted writes, matching redisTxn's committed-state-only reads.
type memoryTxn struct {
	backend   *Memory
	ctx       context.Context
	namespace string
	overlay   map[string]*entry // nil value pointer means "deleted"
}

func (t *memoryTxn) Get(ctx context.Context, key string) (interface{}, bool, error) {
	return t.backend.Get(t.ctx, t.namespace, key)
}

func (t *memoryTxn) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	sv, err := serialize("transaction.set", t.namespace, key, value)
	if err != nil {
		return err
	}
	t.overlay[key] = &entry{value: sv, expiry: expiryFor(ttl)}
	return nil
}

func (t *memoryTxn) Delete(ctx context.Context, key string) error {
	t.overlay[key] = nil
	return nil
}

func (t *memoryTxn) commit() {
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()

	ns, ok := t.backend.storage[t.namespace]
	if !ok {
		ns = make(map[string]entry)
		t.backend.storage[t.namespace] = ns
	}
	for key, e := range t.overlay {
		if e == nil {
			delete(ns, key)
			continue
		}
		ns[key] = *e
	}
}
