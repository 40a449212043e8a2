package state

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "keyvault", "k1", map[string]interface{}{"a": 1.0}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found, err := m.Get(ctx, "keyvault", "k1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	gotMap := got.(map[string]interface{})
	if gotMap["a"] != 1.0 {
		t.Errorf("Get() = %v, want a=1.0", got)
	}
}

func TestMemoryGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, found, err := m.Get(ctx, "keyvault", "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true, want false for missing key")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "oauth", "tok", "value", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, found, err := m.Get(ctx, "oauth", "tok")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true, want false after ttl expiry")
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "k", "v", 0)

	deleted, err := m.Delete(ctx, "ns", "k")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v, want true, nil", deleted, err)
	}

	deleted, err = m.Delete(ctx, "ns", "k")
	if err != nil || deleted {
		t.Fatalf("second Delete() = %v, %v, want false, nil", deleted, err)
	}
}

func TestMemoryListWithPattern(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "user:1", "v", 0)
	_ = m.Set(ctx, "ns", "user:2", "v", 0)
	_ = m.Set(ctx, "ns", "db:1", "v", 0)

	keys, err := m.List(ctx, "ns", "user:*")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List() returned %d keys, want 2", len(keys))
	}
}

func TestMemoryBatchGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	items := map[string]interface{}{"a": "1", "b": "2"}
	if err := m.BatchSet(ctx, "ns", items, 0); err != nil {
		t.Fatalf("BatchSet() error = %v", err)
	}

	got, err := m.BatchGet(ctx, "ns", []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("BatchGet() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("BatchGet() returned %d entries, want 2", len(got))
	}
}

func TestMemoryClearNamespace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "a", "1", 0)
	_ = m.Set(ctx, "ns", "b", "2", 0)

	count, err := m.ClearNamespace(ctx, "ns")
	if err != nil {
		t.Fatalf("ClearNamespace() error = %v", err)
	}
	if count != 2 {
		t.Errorf("ClearNamespace() = %d, want 2", count)
	}

	keys, _ := m.List(ctx, "ns", "")
	if len(keys) != 0 {
		t.Errorf("List() after clear = %v, want empty", keys)
	}
}

func TestMemoryGetTTLNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, _, err := m.GetTTL(ctx, "ns", "missing")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("GetTTL() error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemorySetTTLUpdatesExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "k", "v", 0)

	updated, err := m.SetTTL(ctx, "ns", "k", time.Hour)
	if err != nil || !updated {
		t.Fatalf("SetTTL() = %v, %v, want true, nil", updated, err)
	}

	ttl, has, err := m.GetTTL(ctx, "ns", "k")
	if err != nil {
		t.Fatalf("GetTTL() error = %v", err)
	}
	if !has {
		t.Error("GetTTL() hasTTL = false, want true")
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("GetTTL() = %v, want ~1h", ttl)
	}
}

func TestMemoryTransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Transaction(ctx, "ns", func(txn Txn) error {
		if err := txn.Set(ctx, "a", "1", 0); err != nil {
			return err
		}
		return txn.Set(ctx, "b", "2", 0)
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}

	_, found, _ := m.Get(ctx, "ns", "a")
	if !found {
		t.Error("expected key 'a' to be committed")
	}
}

func TestMemoryTransactionGetDoesNotSeeOwnPendingWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "existing", "v0", 0)

	err := m.Transaction(ctx, "ns", func(txn Txn) error {
		if err := txn.Set(ctx, "existing", "v1", 0); err != nil {
			return err
		}
		value, found, err := txn.Get(ctx, "existing")
		if err != nil {
			return err
		}
		if !found || value != "v0" {
			t.Errorf("Get() inside txn = (%v, %v), want committed value v0", value, found)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}
}

func TestMemoryTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "ns", "existing", "v0", 0)

	wantErr := errors.New("boom")
	err := m.Transaction(ctx, "ns", func(txn Txn) error {
		if err := txn.Set(ctx, "new-key", "v1", 0); err != nil {
			return err
		}
		if err := txn.Delete(ctx, "existing"); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("Transaction() error = nil, want error")
	}

	_, found, _ := m.Get(ctx, "ns", "new-key")
	if found {
		t.Error("new-key should not be committed after rollback")
	}
	_, found, _ = m.Get(ctx, "ns", "existing")
	if !found {
		t.Error("existing should survive rollback")
	}
}

func TestMemoryNamespaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Set(ctx, "keyvault", "k", "v", 0)
	_ = m.Set(ctx, "oauth", "k", "v", 0)

	nsList, err := m.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces() error = %v", err)
	}
	if len(nsList) != 2 {
		t.Errorf("Namespaces() = %v, want 2 entries", nsList)
	}
}
