package state

import (
	"context"
	"testing"
	"time"
)

func newTestBolt(t *testing.T) *Bolt {
	t.Helper()
	dir := t.TempDir()
	b, err := NewBolt(dir)
	if err != nil {
		t.Fatalf("NewBolt() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)

	if err := b.Set(ctx, "keyvault", "secret1", map[string]interface{}{"v": "shh"}, 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, found, err := b.Get(ctx, "keyvault", "secret1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.(map[string]interface{})["v"] != "shh" {
		t.Errorf("Get() = %v", got)
	}
}

func TestBoltTTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)

	if err := b.Set(ctx, "oauth", "tok", "v", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, found, err := b.Get(ctx, "oauth", "tok")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Get() found = true, want false after expiry")
	}
}

func TestBoltClearNamespace(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)
	_ = b.Set(ctx, "ns", "a", "1", 0)
	_ = b.Set(ctx, "ns", "b", "2", 0)

	count, err := b.ClearNamespace(ctx, "ns")
	if err != nil {
		t.Fatalf("ClearNamespace() error = %v", err)
	}
	if count != 2 {
		t.Errorf("ClearNamespace() = %d, want 2", count)
	}
}

func TestBoltTransactionCommits(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)

	err := b.Transaction(ctx, "ns", func(txn Txn) error {
		return txn.Set(ctx, "k1", "v1", 0)
	})
	if err != nil {
		t.Fatalf("Transaction() error = %v", err)
	}

	_, found, _ := b.Get(ctx, "ns", "k1")
	if !found {
		t.Error("expected committed key k1")
	}
}

func TestBoltTransactionGetDoesNotSeeOwnPendingWrites(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)
	_ = b.Set(ctx, "ns", "existing", "v0", 0)

	err := b.Transaction(ctx, "ns", func(txn Txn) error {
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

func TestBoltTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)

	err := b.Transaction(ctx, "ns", func(txn Txn) error {
		if err := txn.Set(ctx, "k2", "v2", 0); err != nil {
			return err
		}
		return errBoom
	})
	if err == nil {
		t.Fatal("Transaction() error = nil, want error")
	}

	_, found, _ := b.Get(ctx, "ns", "k2")
	if found {
		t.Error("k2 should not be committed after rollback")
	}
}

func TestBoltNamespaces(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)
	_ = b.Set(ctx, "keyvault", "k", "v", 0)
	_ = b.Set(ctx, "oauth", "k", "v", 0)

	names, err := b.Namespaces(ctx)
	if err != nil {
		t.Fatalf("Namespaces() error = %v", err)
	}
	if len(names) != 2 {
		t.Errorf("Namespaces() = %v, want 2", names)
	}
}

type errBoomT struct{}

func (errBoomT) Error() string { return "boom" }

var errBoom = errBoomT{}
